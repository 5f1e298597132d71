package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mrpack-downloader/internal/aggregate"
	"github.com/tanq16/mrpack-downloader/internal/config"
	"github.com/tanq16/mrpack-downloader/internal/manifest"
	"github.com/tanq16/mrpack-downloader/internal/output"
)

// finish prints the summary, writes the optional report and returns the
// process exit code.
func finish(cfg *config.Config, pack *manifest.Manifest, result aggregate.Result) int {
	output.PrintSummary(os.Stdout, result)
	if cfg.Report != "" {
		if err := output.WriteReport(cfg.Report, pack, result); err != nil {
			log.Error().Str("op", "cmd/finish").Err(err).Msg("Could not write report")
			output.PrintError(err.Error())
			return 1
		}
		output.PrintInfo(fmt.Sprintf("Report written to %s", cfg.Report))
	}
	if result.HasFailures() {
		output.PrintError("Encountered failed download(s)")
		return 1
	}
	return 0
}
