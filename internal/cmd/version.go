package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/namelens/relay/internal/appid"
	"github.com/namelens/relay/internal/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the relay version. --extended adds the commit, build date and toolchain versions.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		extended, _ := cmd.Flags().GetBool("extended")
		value, _ := cmd.Flags().GetString("output")
		format, err := output.ParseFormat(value)
		if err != nil {
			return err
		}
		return writeVersion(cmd.OutOrStdout(), buildVersionReport(extended), format)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("extended", "e", false, "show extended version information")
	addOutputFlag(versionCmd)
}

type versionReport struct {
	Binary    string `json:"binary"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

func buildVersionReport(extended bool) versionReport {
	report := versionReport{
		Binary:  appid.Get().BinaryName,
		Version: versionInfo.Version,
	}
	if extended {
		versions := crucible.GetVersion()
		report.Commit = versionInfo.Commit
		report.BuildDate = versionInfo.BuildDate
		report.Go = runtime.Version()
		report.Gofulmen = versions.Gofulmen
		report.Crucible = versions.Crucible
	}
	return report
}

func writeVersion(out io.Writer, report versionReport, format output.Format) error {
	if format == output.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "%s %s\n", report.Binary, report.Version)
	if report.Go == "" {
		return nil
	}
	fmt.Fprintf(out, "Commit: %s\nBuilt: %s\nGo: %s\n\n", report.Commit, report.BuildDate, report.Go)
	fmt.Fprintf(out, "Gofulmen: %s\nCrucible: %s\n", report.Gofulmen, report.Crucible)
	return nil
}
