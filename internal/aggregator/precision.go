package aggregator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownPrecision is returned for a bucket precision that is neither a
// known unit nor a positive prefix width.
var ErrUnknownPrecision = errors.New("unknown time bucket precision")

// Precision is the number of leading timestamp characters kept as a bucket key.
type Precision int

const (
	PrecisionYear   Precision = 4  // 2024
	PrecisionMonth  Precision = 7  // 2024-02
	PrecisionDay    Precision = 10 // 2024-02-01
	PrecisionHour   Precision = 13 // 2024-02-01 10
	PrecisionMinute Precision = 16 // 2024-02-01 10:15
	PrecisionSecond Precision = 19 // 2024-02-01 10:15:00
)

var precisionNames = map[string]Precision{
	"year":   PrecisionYear,
	"month":  PrecisionMonth,
	"day":    PrecisionDay,
	"hour":   PrecisionHour,
	"minute": PrecisionMinute,
	"second": PrecisionSecond,
}

// ParsePrecision accepts a unit name (year..second) or a positive prefix width.
func ParsePrecision(s string) (Precision, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if p, ok := precisionNames[s]; ok {
		return p, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return Precision(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPrecision, s)
}

// Truncate returns the bucket key for a timestamp. Timestamps shorter than the
// width are their own bucket.
func (p Precision) Truncate(ts string) string {
	if p <= 0 || len(ts) <= int(p) {
		return ts
	}
	return ts[:p]
}

func (p Precision) String() string {
	for name, v := range precisionNames {
		if v == p {
			return name
		}
	}
	return strconv.Itoa(int(p))
}
