// Package commands implements CLI command handlers for diffreel.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/diffreel/diffreel/internal/config"
	"github.com/diffreel/diffreel/pkg/gitsrc"
	"github.com/diffreel/diffreel/pkg/normalize"
	"github.com/diffreel/diffreel/pkg/pipeline"
	"github.com/diffreel/diffreel/pkg/render"
	"github.com/diffreel/diffreel/pkg/report"
	"github.com/diffreel/diffreel/pkg/resolve"
	"github.com/diffreel/diffreel/pkg/runlog"
)

// documentName is the markdown file written into the output directory.
const documentName = "REVIEW.md"

// subjectColumnWidth caps the subject column in the summary table.
const subjectColumnWidth = 50

// GenerateCommand holds configuration and dependencies for the generate command.
type GenerateCommand struct {
	configPath string
	repoPath   string
	base       string
	mode       string
	commits    []string

	outputDir string
	title     string

	excludePatterns   []string
	maxFiles          int
	fileLineCeiling   int
	commitLineCeiling int

	width       int
	rowsPerPage int
	tabWidth    int

	workers int

	silent  bool
	noColor bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	gc := &GenerateCommand{}

	cmd := &cobra.Command{
		Use:   "generate [target]",
		Short: "Resolve a commit range and render its diff reel",
		Long: `Resolve the commits unique to a target branch (or an explicit
commit list), render each commit's diffs as side-by-side PNG pages,
and write a markdown document stitching the pages together.`,
		Args: cobra.MaximumNArgs(1),
		RunE: gc.run,
	}

	cmd.Flags().StringVar(&gc.configPath, "config", "", "Config file path (default: .diffreel.yaml in CWD or $HOME)")
	cmd.Flags().StringVarP(&gc.repoPath, "path", "p", ".", "Repository path")
	cmd.Flags().StringVarP(&gc.base, "base", "b", "", "Base ref for branch-unique resolution (default from config)")
	cmd.Flags().StringVar(&gc.mode, "mode", "", "Range mode: branch-unique, all")
	cmd.Flags().StringSliceVar(&gc.commits, "commits", nil, "Explicit commit hashes (overrides range resolution)")

	cmd.Flags().StringVarP(&gc.outputDir, "output", "o", "", "Output directory (default from config)")
	cmd.Flags().StringVar(&gc.title, "title", "", "Document title")

	cmd.Flags().StringSliceVar(&gc.excludePatterns, "exclude", nil, "Extra glob patterns to exclude")
	cmd.Flags().IntVar(&gc.maxFiles, "max-files", 0, "Max files rendered per commit (0 = config default)")
	cmd.Flags().IntVar(&gc.fileLineCeiling, "file-lines", 0, "Changed-line ceiling per file before truncation (0 = config default)")
	cmd.Flags().IntVar(&gc.commitLineCeiling, "commit-lines", 0, "Changed-line ceiling per commit (0 = config default)")

	cmd.Flags().IntVar(&gc.width, "width", 0, "Page width in pixels (0 = config default)")
	cmd.Flags().IntVar(&gc.rowsPerPage, "rows-per-page", 0, "Max aligned rows per page (0 = config default)")
	cmd.Flags().IntVar(&gc.tabWidth, "tab-width", 0, "Spaces per tab (0 = config default)")

	cmd.Flags().IntVar(&gc.workers, "workers", 0, "Concurrent commit workers (0 = config default)")

	cmd.Flags().BoolVar(&gc.silent, "silent", false, "Disable progress output")
	cmd.Flags().BoolVar(&gc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (gc *GenerateCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(gc.configPath)
	if err != nil {
		return err
	}

	gc.applyOverrides(cfg)

	if gc.noColor {
		color.NoColor = true
	}

	scope, err := gc.buildScope(cfg, args)
	if err != nil {
		return err
	}

	silent := gc.isSilent(cmd)
	logger := buildLogger(cmd.ErrOrStderr(), silent)
	recorder := runlog.NewRecorder(logger)

	src, err := gitsrc.Open(gc.repoPath)
	if err != nil {
		return err
	}
	defer src.Free()

	opts, err := gc.pipelineOptions(cfg)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	if !silent {
		opts.OnCommit = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("rendering commits"),
					progressbar.OptionShowCount(),
				)
			}

			_ = bar.Set(done)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(src, recorder, opts)
	if err != nil {
		return err
	}

	// An interrupted run still returns the commits that completed; write
	// them out before surfacing the cancellation as the exit status.
	result, runErr := p.Run(ctx, scope)
	if runErr != nil && (result == nil || len(result.Commits) == 0) {
		return runErr
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	outDir := cfg.Output.Dir
	if err := gc.writeOutputs(result, cfg, outDir); err != nil {
		return err
	}

	if !silent {
		gc.printSummary(cmd.OutOrStdout(), result, outDir)
	}

	return runErr
}

// applyOverrides copies set flags over the loaded config.
func (gc *GenerateCommand) applyOverrides(cfg *config.Config) {
	if gc.base != "" {
		cfg.Range.Base = gc.base
	}

	if gc.mode != "" {
		cfg.Range.Mode = gc.mode
	}

	if gc.outputDir != "" {
		cfg.Output.Dir = gc.outputDir
	}

	if gc.title != "" {
		cfg.Output.Title = gc.title
	}

	if gc.maxFiles > 0 {
		cfg.Diff.MaxFiles = gc.maxFiles
	}

	if gc.fileLineCeiling > 0 {
		cfg.Diff.FileLineCeiling = gc.fileLineCeiling
	}

	if gc.commitLineCeiling > 0 {
		cfg.Diff.CommitLineCeiling = gc.commitLineCeiling
	}

	if gc.width > 0 {
		cfg.Render.Width = gc.width
	}

	if gc.rowsPerPage > 0 {
		cfg.Render.RowsPerPage = gc.rowsPerPage
	}

	if gc.tabWidth > 0 {
		cfg.Render.TabWidth = gc.tabWidth
	}

	if gc.workers > 0 {
		cfg.Pipeline.Workers = gc.workers
	}

	cfg.Diff.ExcludePatterns = append(cfg.Diff.ExcludePatterns, gc.excludePatterns...)
}

func (gc *GenerateCommand) buildScope(cfg *config.Config, args []string) (resolve.Scope, error) {
	if len(gc.commits) > 0 {
		return resolve.Scope{Hashes: gc.commits}, nil
	}

	if len(args) == 0 {
		return resolve.Scope{}, fmt.Errorf("%w: pass a target ref or --commits", resolve.ErrEmptyScope)
	}

	scope := resolve.Scope{Target: args[0], Base: cfg.Range.Base}

	switch cfg.Range.Mode {
	case config.RangeModeBranchUnique:
		scope.Mode = resolve.ModeBranchUnique
	case config.RangeModeAllCommits:
		scope.Mode = resolve.ModeAllCommits
	default:
		return resolve.Scope{}, config.ErrInvalidRangeMode
	}

	return scope, nil
}

func (gc *GenerateCommand) pipelineOptions(cfg *config.Config) (pipeline.Options, error) {
	timeout, err := cfg.CommitTimeout()
	if err != nil {
		return pipeline.Options{}, err
	}

	return pipeline.Options{
		Workers:       cfg.Pipeline.Workers,
		CommitTimeout: timeout,
		Normalize: normalize.Options{
			MaxFiles:          cfg.Diff.MaxFiles,
			ExcludePatterns:   cfg.Diff.ExcludePatterns,
			FileLineCeiling:   cfg.Diff.FileLineCeiling,
			CommitLineCeiling: cfg.Diff.CommitLineCeiling,
		},
		Render: render.Options{
			Width:          cfg.Render.Width,
			MaxRowsPerPage: cfg.Render.RowsPerPage,
			TabWidth:       cfg.Render.TabWidth,
		},
	}, nil
}

// writeOutputs writes every page image plus the markdown document.
func (gc *GenerateCommand) writeOutputs(result *pipeline.Result, cfg *config.Config, outDir string) error {
	imageDir := filepath.Join(outDir, cfg.Output.ImageDir)
	if err := os.MkdirAll(imageDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, commit := range result.Commits {
		short := commit.Commit.Short()

		for _, page := range commit.Pages {
			name := report.ImageName(i, short, page)

			err := os.WriteFile(filepath.Join(imageDir, name), page.Image, 0o600)
			if err != nil {
				return fmt.Errorf("write page image %s: %w", name, err)
			}
		}
	}

	doc, err := report.Generate(result, report.Options{
		Title:    cfg.Output.Title,
		ImageDir: cfg.Output.ImageDir,
	})
	if err != nil {
		return err
	}

	docPath := filepath.Join(outDir, documentName)
	if err := os.WriteFile(docPath, []byte(doc), 0o600); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	return nil
}

func (gc *GenerateCommand) printSummary(writer io.Writer, result *pipeline.Result, outDir string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(writer)
	tw.AppendHeader(table.Row{"#", "Commit", "Subject", "Files", "+", "-", "Pages"})

	for i, commit := range result.Commits {
		subject, _, _ := strings.Cut(commit.Commit.Message, "\n")
		if len(subject) > subjectColumnWidth {
			subject = subject[:subjectColumnWidth]
		}

		tw.AppendRow(table.Row{
			i + 1,
			commit.Commit.Short(),
			subject,
			commit.Summary.FilesChanged,
			commit.Summary.TotalAdded,
			commit.Summary.TotalRemoved,
			len(commit.Pages),
		})
	}

	tw.Render()

	if len(result.Warnings) > 0 {
		color.New(color.FgYellow).Fprintf(writer, "%d warnings recorded; see %s\n",
			len(result.Warnings), filepath.Join(outDir, documentName))
	}

	color.New(color.FgGreen).Fprintf(writer, "wrote %d commits to %s\n",
		len(result.Commits), filepath.Join(outDir, documentName))
}

func (gc *GenerateCommand) isSilent(cmd *cobra.Command) bool {
	if gc.silent {
		return true
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return false
	}

	return quiet
}

func buildLogger(writer io.Writer, silent bool) *slog.Logger {
	if silent {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
