package parser

import "testing"

// BenchmarkDelimitedParser measures CSV row parsing throughput.
func BenchmarkDelimitedParser(b *testing.B) {
	p, _ := NewDelimitedParser(',')
	line := `192.168.1.10,2024-02-01 10:15:00,/products/42,404,"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)"`

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = p.Parse(line)
	}
}

// BenchmarkJSONParser measures JSON-lines parsing throughput.
func BenchmarkJSONParser(b *testing.B) {
	p := NewJSONParser()
	line := `{"ip":"192.168.1.10","timestamp":"2024-02-01 10:15:00","url":"/products/42","status":404,"user_agent":"curl/8.0"}`

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = p.Parse(line)
	}
}
