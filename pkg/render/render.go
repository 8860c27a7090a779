// Package render writes branch listing reports as a terminal table, JSON or
// YAML.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/config"
	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
)

// ErrUnknownFormat is returned for formats other than table, json and yaml.
var ErrUnknownFormat = errors.New("unknown output format")

// maxAuthorsShown caps the author column; the rest are summarized as "+N".
const maxAuthorsShown = 3

// Write renders report in the given format.
func Write(w io.Writer, report *branches.Report, format string) error {
	switch strings.ToLower(format) {
	case config.FormatTable, "":
		return Table(w, report)
	case config.FormatJSON:
		return JSON(w, report)
	case config.FormatYAML:
		return YAML(w, report)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Table writes one row per branch followed by one line per failure.
func Table(w io.Writer, report *branches.Report) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Format.Footer = text.FormatDefault

	tbl.AppendHeader(table.Row{"Branch", "Commits", "Added", "Removed", "Files", "Authors"})

	var commits, added, removed int64

	for _, details := range report.Details {
		tbl.AppendRow(table.Row{
			details.Name,
			humanize.Comma(int64(details.NumberOfCommits)),
			"+" + humanize.Comma(details.LinesAdded),
			"-" + humanize.Comma(details.LinesRemoved),
			humanize.Comma(int64(details.NumberOfFiles)),
			authorsCell(details.Authors),
		})

		commits += int64(details.NumberOfCommits)
		added += details.LinesAdded
		removed += details.LinesRemoved
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d branches", len(report.Details)),
		humanize.Comma(commits),
		"+" + humanize.Comma(added),
		"-" + humanize.Comma(removed),
	})

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return writeFailures(w, report.Failures)
}

func writeFailures(w io.Writer, failures []branches.Failure) error {
	if len(failures) == 0 {
		return nil
	}

	red := color.New(color.FgRed)

	if _, err := red.Fprintf(w, "\n%d branch(es) failed:\n", len(failures)); err != nil {
		return fmt.Errorf("write failures: %w", err)
	}

	for _, failure := range failures {
		if _, err := red.Fprintf(w, "  %s: %v\n", failure.Name, failure.Err); err != nil {
			return fmt.Errorf("write failures: %w", err)
		}
	}

	return nil
}

func authorsCell(authors []revgraph.Author) string {
	names := make([]string, 0, min(len(authors), maxAuthorsShown))

	for _, author := range authors[:min(len(authors), maxAuthorsShown)] {
		names = append(names, author.String())
	}

	cell := strings.Join(names, ", ")

	if extra := len(authors) - maxAuthorsShown; extra > 0 {
		cell += fmt.Sprintf(" +%d", extra)
	}

	return cell
}

// JSON writes the report as indented JSON.
func JSON(w io.Writer, report *branches.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// YAML writes the report as YAML.
func YAML(w io.Writer, report *branches.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return nil
}
