package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/mrpack-downloader/internal/output"
	"github.com/tanq16/mrpack-downloader/internal/scheduler"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the modpack metadata and files without downloading",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			path, _ := cmd.Flags().GetString("mrpack_path")
			side, _ := cmd.Flags().GetString("side")
			if path == "" {
				output.PrintError("No modpack provided (use --mrpack_path)")
				os.Exit(1)
			}
			pack, files, err := scheduler.LoadManifest(path, side)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			output.PrintManifest(os.Stdout, pack, files)
			if len(files) == 0 {
				output.PrintWarning("No files apply to the selected side")
			}
		},
	}
}
