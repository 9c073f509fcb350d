package cmd

import (
	"github.com/spf13/cobra"

	"github.com/atikulmunna/logtally/internal/aggregator"
)

// analysisFlags maps the flags shared by analyze and serve to config keys.
var analysisFlags = map[string]string{
	"top-n":                 "report.top_n",
	"failure-statuses":      "report.failure_statuses",
	"failure-threshold":     "report.failure_threshold",
	"time-bucket-precision": "report.time_bucket_precision",
	"delimiter":             "input.delimiter",
	"input-format":          "input.format",
	"skip-header-lines":     "input.skip_header_lines",
	"strict":                "input.strict",
	"partition-dir":         "output.partition_dir",
	"export-dir":            "output.export_dir",
	"db-driver":             "database.driver",
	"db-dsn":                "database.dsn",
	"redis-addr":            "redis.addr",
	"amqp-url":              "amqp.url",
}

func addAnalysisFlags(cmd *cobra.Command) {
	d := aggregator.DefaultOptions()
	f := cmd.Flags()

	f.Int("top-n", d.TopN, "number of most requested URLs to report")
	f.IntSlice("failure-statuses", d.FailureStatuses, "status codes counted as failed requests")
	f.Int("failure-threshold", d.FailureThreshold, "report IPs with more failed requests than this")
	f.String("time-bucket-precision", d.Precision.String(), "traffic bucket: year, month, day, hour, minute, second or a prefix width")

	f.String("delimiter", ",", `input field delimiter ("tab" for tab-separated)`)
	f.String("input-format", "csv", "input format: csv, json")
	f.Int("skip-header-lines", 1, "header lines to skip at the top of each csv file")
	f.Bool("strict", false, "fail on the first malformed line instead of skipping it")

	f.String("partition-dir", "", "write a status-partitioned copy of the records here")
	f.String("export-dir", "", "write one CSV per report section plus report.json here")
	f.String("db-driver", "sqlite", "table store driver: sqlite, mysql")
	f.String("db-dsn", "", "load records into the web_logs table at this DSN")
	f.String("redis-addr", "", "publish the report to this Redis server")
	f.String("amqp-url", "", "publish suspicious IPs as block messages to this broker")
}
