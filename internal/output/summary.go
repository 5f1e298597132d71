package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tanq16/mrpack-downloader/internal/aggregate"
	"github.com/tanq16/mrpack-downloader/internal/manifest"
	"github.com/tanq16/mrpack-downloader/internal/utils"
)

// PrintSummary writes the final counts and every failed entry with the
// reason recorded for each mirror.
func PrintSummary(w io.Writer, result aggregate.Result) {
	total := result.Len()
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", len(result.Succeeded), total)))
	if !result.HasFailures() {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintln(w, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", len(result.Failed), total)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, id := range result.FailedIDs() {
		fmt.Fprintf(w, "%s%s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			errorStyle.Render(id.Path))
		for _, reason := range result.Failed[id] {
			fmt.Fprintf(w, "%s%s %s\n", strings.Repeat(" ", 2+4), streamStyle.Render(StyleSymbols["arrow"]), streamStyle.Render(reason.Error()))
		}
	}
	fmt.Fprintln(w)
}

// PrintManifest writes pack metadata and its entries, used by inspect.
func PrintManifest(w io.Writer, m *manifest.Manifest, files []manifest.File) {
	fmt.Fprintln(w, headerStyle.Render(m.Name))
	fmt.Fprintf(w, "%s%s %s %s\n", strings.Repeat(" ", 2), infoStyle.Render("game"), StyleSymbols["arrow"], m.Game)
	fmt.Fprintf(w, "%s%s %s %s\n", strings.Repeat(" ", 2), infoStyle.Render("version"), StyleSymbols["arrow"], m.VersionID)
	fmt.Fprintf(w, "%s%s %s %d\n", strings.Repeat(" ", 2), infoStyle.Render("format"), StyleSymbols["arrow"], m.FormatVersion)
	for _, dep := range sortedKeys(m.Dependencies) {
		fmt.Fprintf(w, "%s%s %s %s\n", strings.Repeat(" ", 2), infoStyle.Render(dep), StyleSymbols["arrow"], m.Dependencies[dep])
	}
	fmt.Fprintln(w)
	for _, f := range files {
		fmt.Fprintf(w, "%s%s %s %s\n",
			strings.Repeat(" ", 2),
			pendingStyle.Render(StyleSymbols["bullet"]),
			f.Path,
			debugStyle.Render(fmt.Sprintf("(%s, %d mirrors)", utils.FormatBytes(f.FileSize), len(f.Downloads))))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("%d files, %s total", len(files), utils.FormatBytes(manifest.TotalSize(files)))))
}

// Report is the serialized form of a run.
type Report struct {
	Pack      string         `yaml:"pack"`
	Version   string         `yaml:"version"`
	Finished  time.Time      `yaml:"finished"`
	Succeeded []ReportEntry  `yaml:"succeeded"`
	Failed    []ReportFailed `yaml:"failed"`
}

type ReportEntry struct {
	Path string `yaml:"path"`
	File string `yaml:"file"`
}

type ReportFailed struct {
	Path    string   `yaml:"path"`
	Reasons []string `yaml:"reasons"`
}

func BuildReport(m *manifest.Manifest, result aggregate.Result) Report {
	r := Report{
		Pack:      m.Name,
		Version:   m.VersionID,
		Finished:  time.Now().UTC().Truncate(time.Second),
		Succeeded: []ReportEntry{},
		Failed:    []ReportFailed{},
	}
	for _, id := range result.SucceededIDs() {
		r.Succeeded = append(r.Succeeded, ReportEntry{Path: id.Path, File: result.Succeeded[id]})
	}
	for _, id := range result.FailedIDs() {
		failed := ReportFailed{Path: id.Path}
		for _, reason := range result.Failed[id] {
			failed.Reasons = append(failed.Reasons, reason.Error())
		}
		r.Failed = append(r.Failed, failed)
	}
	return r
}

// WriteReport stores the run report as YAML at path.
func WriteReport(path string, m *manifest.Manifest, result aggregate.Result) error {
	data, err := yaml.Marshal(BuildReport(m, result))
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}
