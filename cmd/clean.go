package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tanq16/mrpack-downloader/internal/output"
	"github.com/tanq16/mrpack-downloader/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [out_path]",
		Short: "Remove temporary files left by interrupted runs",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			outPath := "./"
			if len(args) == 1 {
				outPath = args[0]
			}
			removed, err := utils.Clean(filepath.Join(outPath, utils.OutputDirName))
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up temporary files: %v", err))
				os.Exit(1)
			}
			if removed {
				output.PrintSuccess("Temporary files cleaned up")
			} else {
				output.PrintInfo("Nothing to clean")
			}
		},
	}
}
