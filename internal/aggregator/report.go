package aggregator

import "sort"

// Report section names, in presentation order.
const (
	SectionTotalRequests = "total_requests"
	SectionStatusCodes   = "status_codes"
	SectionTopURLs       = "top_urls"
	SectionUserAgents    = "user_agents"
	SectionSuspiciousIPs = "suspicious_ips"
	SectionTrafficTrends = "traffic_trends"
)

// Sections lists every report section name in presentation order.
var Sections = []string{
	SectionTotalRequests,
	SectionStatusCodes,
	SectionTopURLs,
	SectionUserAgents,
	SectionSuspiciousIPs,
	SectionTrafficTrends,
}

// Options parameterizes a Report.
type Options struct {
	TopN             int
	FailureStatuses  []int
	FailureThreshold int
	Precision        Precision
}

// DefaultOptions returns top 3 URLs, failures {404, 500} above 3, minute buckets.
func DefaultOptions() Options {
	return Options{
		TopN:             3,
		FailureStatuses:  []int{404, 500},
		FailureThreshold: 3,
		Precision:        PrecisionMinute,
	}
}

// StatusCount is one row of the status code histogram.
type StatusCount struct {
	Status int `json:"status"`
	Count  int `json:"count"`
}

// Report is the full set of aggregate results for one run.
type Report struct {
	TotalRequests  int           `json:"total_requests"`
	StatusCodes    []StatusCount `json:"status_codes"`
	TopURLs        []Ranked      `json:"top_urls"`
	UserAgents     []Ranked      `json:"user_agents"`
	SuspiciousIPs  []Ranked      `json:"suspicious_ips"`
	TrafficTrends  []Ranked      `json:"traffic_trends"`
	SkippedRecords int           `json:"skipped_records"`
}

// Report computes every section with the given options.
func (a *Aggregator) Report(opts Options) *Report {
	freq := a.StatusFrequency()
	codes := make([]StatusCount, 0, len(freq))
	for status, n := range freq {
		codes = append(codes, StatusCount{Status: status, Count: n})
	}
	sort.Slice(codes, func(i, j int) bool {
		return codes[i].Status < codes[j].Status
	})

	return &Report{
		TotalRequests: a.TotalRequests(),
		StatusCodes:   codes,
		TopURLs:       a.TopURLs(opts.TopN),
		UserAgents:    a.UserAgentFrequency(),
		SuspiciousIPs: a.SuspiciousIPs(opts.FailureStatuses, opts.FailureThreshold),
		TrafficTrends: a.TrafficTrends(opts.Precision),
	}
}

// Section returns the named section's value, or false for an unknown name.
func (r *Report) Section(name string) (any, bool) {
	switch name {
	case SectionTotalRequests:
		return r.TotalRequests, true
	case SectionStatusCodes:
		return r.StatusCodes, true
	case SectionTopURLs:
		return r.TopURLs, true
	case SectionUserAgents:
		return r.UserAgents, true
	case SectionSuspiciousIPs:
		return r.SuspiciousIPs, true
	case SectionTrafficTrends:
		return r.TrafficTrends, true
	default:
		return nil, false
	}
}
