// Package report assembles the markdown document that stitches a run's
// rendered pages into a reviewable narrative: header, table of contents,
// and one section per commit with its stats and page images.
package report

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/diffreel/diffreel/pkg/pipeline"
	"github.com/diffreel/diffreel/pkg/render"
	"github.com/diffreel/diffreel/pkg/runlog"
)

// Options configures document assembly.
type Options struct {
	// Title heads the document. Empty means a default derived from the range.
	Title string
	// ImageDir is the directory the markdown references images from,
	// relative to the document.
	ImageDir string
	// Now stamps the header; zero means time.Now.
	Now time.Time
}

const defaultImageDir = "images"

// ImageName returns the stable file name of one rendered page. Names sort
// in reading order: commit position, then per-commit sequence.
func ImageName(commitIndex int, commitShort string, page render.RenderedPage) string {
	return fmt.Sprintf("%03d_%s_%03d.png", commitIndex+1, commitShort, page.Sequence)
}

type commitSection struct {
	Index    int
	Short    string
	Subject  string
	Author   string
	Date     string
	Stats    string
	Files    []fileLine
	Images   []string
	Skipped  []string
	Binaries []string
}

type fileLine struct {
	Path  string
	Kind  string
	Added int
	Rem   int
	Note  string
}

type document struct {
	Title     string
	Generated string
	Commits   []commitSection
	Warnings  []string
}

// Generate renders the full markdown document for a run.
func Generate(result *pipeline.Result, opts Options) (string, error) {
	if opts.ImageDir == "" {
		opts.ImageDir = defaultImageDir
	}

	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	doc := document{
		Title:     opts.Title,
		Generated: opts.Now.Format(time.RFC1123Z),
	}

	if doc.Title == "" {
		doc.Title = fmt.Sprintf("Diff reel: %s", humanize.Comma(int64(len(result.Commits)))+" commits")
	}

	for i, commit := range result.Commits {
		doc.Commits = append(doc.Commits, buildSection(i, commit, opts.ImageDir))
	}

	for _, warning := range result.Warnings {
		doc.Warnings = append(doc.Warnings, formatWarning(warning))
	}

	var sb strings.Builder
	if err := docTemplate.Execute(&sb, doc); err != nil {
		return "", fmt.Errorf("execute report template: %w", err)
	}

	return sb.String(), nil
}

func buildSection(index int, commit pipeline.CommitResult, imageDir string) commitSection {
	short := commit.Commit.Short()
	subject, _, _ := strings.Cut(commit.Commit.Message, "\n")

	section := commitSection{
		Index:   index + 1,
		Short:   short,
		Subject: subject,
		Author:  commit.Commit.Author.Name,
		Date:    commit.Commit.Author.When.Format("2006-01-02 15:04"),
		Stats: fmt.Sprintf("%s changed, +%s / -%s",
			pluralFiles(commit.Summary.FilesChanged),
			humanize.Comma(int64(commit.Summary.TotalAdded)),
			humanize.Comma(int64(commit.Summary.TotalRemoved))),
		Skipped:  commit.Summary.SummarizedFiles,
		Binaries: commit.Summary.BinarySkipped,
	}

	for _, file := range commit.Files {
		note := ""
		if file.Truncated {
			note = "truncated"
		}

		section.Files = append(section.Files, fileLine{
			Path:  file.Path,
			Kind:  file.Kind.String(),
			Added: file.Added,
			Rem:   file.Removed,
			Note:  note,
		})
	}

	for _, page := range commit.Pages {
		section.Images = append(section.Images, imageDir+"/"+ImageName(index, short, page))
	}

	return section
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}

	return fmt.Sprintf("%d files", n)
}

func formatWarning(warning runlog.Warning) string {
	parts := []string{string(warning.Stage)}

	if warning.Commit != "" {
		parts = append(parts, warning.Commit)
	}

	if warning.Path != "" {
		parts = append(parts, warning.Path)
	}

	return fmt.Sprintf("`%s`: %v", strings.Join(parts, " "), warning.Err)
}

var docTemplate = template.Must(template.New("report").Parse(`# {{.Title}}

_Generated {{.Generated}}_

## Contents

{{range .Commits -}}
{{.Index}}. [` + "`{{.Short}}`" + ` {{.Subject}}](#commit-{{.Index}})
{{end}}
{{- range .Commits}}
## Commit {{.Index}}: ` + "`{{.Short}}`" + `

**{{.Subject}}**

{{.Author}} · {{.Date}} · {{.Stats}}
{{if .Files}}
| File | Change | + | - | |
|------|--------|---|---|---|
{{range .Files -}}
| ` + "`{{.Path}}`" + ` | {{.Kind}} | {{.Added}} | {{.Rem}} | {{.Note}} |
{{end}}
{{- end}}
{{- if .Skipped}}
Summarized without pages: {{range $i, $p := .Skipped}}{{if $i}}, {{end}}` + "`{{$p}}`" + `{{end}}
{{end}}
{{- if .Binaries}}
Binary files skipped: {{range $i, $p := .Binaries}}{{if $i}}, {{end}}` + "`{{$p}}`" + `{{end}}
{{end}}
{{- range .Images}}
![diff page]({{.}})
{{end}}
{{- end}}
{{- if .Warnings}}

## Warnings

{{range .Warnings -}}
- {{.}}
{{end}}
{{- end}}`))
