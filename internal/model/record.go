package model

// LogRecord is one parsed access-log row.
type LogRecord struct {
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"` // "YYYY-MM-DD HH:MM:SS", sorts lexically
	URL       string `json:"url"`
	Status    int    `json:"status"`
	UserAgent string `json:"user_agent"`
}

// RawLine is an unparsed input line and where it came from.
type RawLine struct {
	Text   string
	Source string // originating file path
	Line   int    // 1-based line number within Source

	// Oversized marks a line longer than the reader accepts. Text is empty.
	Oversized bool
}
