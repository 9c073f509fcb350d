package cmd

import (
	"maps"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/logtally/internal/config"
)

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	keys := maps.Clone(analysisFlags)
	keys["output"] = "output.path"
	keys["format"] = "output.format"
	keys["color"] = "output.color"

	cmd := &cobra.Command{
		Use:   "analyze [inputs...]",
		Short: "Analyze access log files and print a report",
		Long: `Read one or more access log files (paths, directories or glob patterns),
aggregate every record once, and print the report.

Examples:
  logtally analyze access.csv
  logtally analyze "logs/**/*.csv" --top-n 10 --failure-threshold 5
  logtally analyze access.csv -f json -o report.json
  logtally analyze access.csv --export-dir out --partition-dir partitioned`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), keys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			res, err := analyzeOnce(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), cfg, res.Report)
		},
	}

	addAnalysisFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringP("format", "f", "text", "report format: text, csv, json")
	cmd.Flags().Bool("color", true, "style text output when writing to a terminal")
	return cmd
}
