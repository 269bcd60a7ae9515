// Package pipeline drives a full run: resolve the commit range, normalize
// each commit's diffs, render pages, and assemble per-commit results in
// range order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kushsharma/parallel"

	"github.com/diffreel/diffreel/pkg/gitsrc"
	"github.com/diffreel/diffreel/pkg/normalize"
	"github.com/diffreel/diffreel/pkg/render"
	"github.com/diffreel/diffreel/pkg/resolve"
	"github.com/diffreel/diffreel/pkg/runlog"
)

// ErrCancelled marks work lost to cancellation: recorded as a warning for a
// commit whose own hard timeout expired, and returned from Run when the run
// context is done. Commits that finished before cancellation are kept.
var ErrCancelled = errors.New("run cancelled")

// Concurrency defaults.
const (
	DefaultWorkers       = 4
	DefaultCommitTimeout = 2 * time.Minute
)

// Options configures a run.
type Options struct {
	// Workers bounds the number of commits processed concurrently.
	Workers int
	// CommitTimeout bounds processing of a single commit.
	CommitTimeout time.Duration
	// Normalize bounds each commit's diff output.
	Normalize normalize.Options
	// Render controls page geometry.
	Render render.Options
	// OnCommit, when set, is called at the collection barrier once per
	// finished commit, in range order.
	OnCommit func(done, total int)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}

	if o.CommitTimeout <= 0 {
		o.CommitTimeout = DefaultCommitTimeout
	}

	return o
}

// FileStat summarizes one rendered file of a commit.
type FileStat struct {
	Path      string
	Kind      gitsrc.ChangeKind
	Added     int
	Removed   int
	Truncated bool
	Pages     int
}

// CommitResult is the full output for one commit of the range.
type CommitResult struct {
	Commit  gitsrc.CommitRef
	Files   []FileStat
	Summary normalize.ChangeSummary
	Pages   []render.RenderedPage
}

// Result is the output of a whole run, commits in range order.
type Result struct {
	Commits  []CommitResult
	Warnings []runlog.Warning
}

// Pipeline wires the stages together.
type Pipeline struct {
	src        gitsrc.Source
	resolver   *resolve.Resolver
	normalizer *normalize.Normalizer
	renderer   *render.Renderer
	recorder   *runlog.Recorder
	opts       Options
}

// New builds a Pipeline over the given source.
func New(src gitsrc.Source, recorder *runlog.Recorder, opts Options) (*Pipeline, error) {
	opts = opts.withDefaults()

	renderer, err := render.New(opts.Render, recorder)
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	return &Pipeline{
		src:        src,
		resolver:   resolve.New(src, recorder),
		normalizer: normalize.New(src, recorder, opts.Normalize),
		renderer:   renderer,
		recorder:   recorder,
		opts:       opts,
	}, nil
}

// Run resolves the scope and processes every commit of the range with a
// bounded worker pool. Results come back in range order with gap-free page
// sequence numbers. Per-commit failures and timeouts become warnings and
// never abort the run; run-level cancellation stops dispatch and returns
// the commits already completed alongside ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, scope resolve.Scope) (*Result, error) {
	commits, err := p.resolver.Resolve(ctx, scope)
	if err != nil {
		return nil, err
	}

	runner := parallel.NewRunner(parallel.WithLimit(p.opts.Workers))

	dispatched := 0

	for _, commit := range commits {
		if ctx.Err() != nil {
			break
		}

		runner.Add(func(c gitsrc.CommitRef) func() (interface{}, error) {
			return func() (interface{}, error) {
				return p.processCommit(ctx, c)
			}
		}(commit))

		dispatched++
	}

	// Collection barrier: results arrive in range order regardless of
	// worker completion order.
	results := make([]CommitResult, 0, dispatched)

	for i, state := range runner.Run() {
		if state.Err != nil {
			p.recordCommitFailure(ctx, commits[i], state.Err)

			continue
		}

		result, ok := state.Val.(CommitResult)
		if !ok {
			return nil, fmt.Errorf("unexpected worker result type %T", state.Val)
		}

		assignSequence(&result)
		results = append(results, result)

		if p.opts.OnCommit != nil {
			p.opts.OnCommit(i+1, len(commits))
		}
	}

	for _, commit := range commits[dispatched:] {
		p.recorder.Record(runlog.StagePipeline, commit.Short(), "",
			fmt.Errorf("%w: not dispatched", ErrCancelled))
	}

	run := &Result{Commits: results, Warnings: p.recorder.Warnings()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return run, fmt.Errorf("%w: %v", ErrCancelled, ctxErr)
	}

	return run, nil
}

// recordCommitFailure turns one worker's error into a warning. A deadline
// hit under the commit's own timeout discards only that commit; the run
// keeps going unless the run context itself is done.
func (p *Pipeline) recordCommitFailure(ctx context.Context, commit gitsrc.CommitRef, err error) {
	cancelled := ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)

	if cancelled {
		err = fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	p.recorder.Record(runlog.StagePipeline, commit.Short(), "", err)
}

// processCommit normalizes and renders one commit under its own deadline.
func (p *Pipeline) processCommit(ctx context.Context, commit gitsrc.CommitRef) (CommitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.CommitTimeout)
	defer cancel()

	diffs, summary, err := p.normalizer.Normalize(ctx, commit)
	if err != nil {
		return CommitResult{}, fmt.Errorf("normalize %s: %w", commit.Short(), err)
	}

	result := CommitResult{Commit: commit, Summary: summary}

	for i := range diffs {
		fd := &diffs[i]

		pages, renderErr := p.renderer.Render(ctx, commit.Short(), fd)
		if renderErr != nil {
			if ctx.Err() != nil {
				return CommitResult{}, renderErr
			}

			p.recorder.Record(runlog.StageRender, commit.Short(), fd.Path, renderErr)

			continue
		}

		result.Files = append(result.Files, FileStat{
			Path:      fd.Path,
			Kind:      fd.Kind,
			Added:     fd.Added(),
			Removed:   fd.Removed(),
			Truncated: fd.Truncated,
			Pages:     len(pages),
		})
		result.Pages = append(result.Pages, pages...)
	}

	if len(result.Pages) == 0 {
		card, cardErr := p.renderer.RenderCommitCard(commitCard(commit, summary))
		if cardErr != nil {
			return CommitResult{}, fmt.Errorf("render commit card %s: %w", commit.Short(), cardErr)
		}

		result.Pages = append(result.Pages, card)
	}

	return result, nil
}

// assignSequence numbers a commit's pages 1..N in file-then-page order.
// Numbering happens here, after collection, so it is gap-free even when
// files or hunks were skipped during rendering.
func assignSequence(result *CommitResult) {
	for i := range result.Pages {
		result.Pages[i].Sequence = i + 1
	}
}

func commitCard(commit gitsrc.CommitRef, summary normalize.ChangeSummary) render.CommitCard {
	return render.CommitCard{
		Hash:         commit.Hash.String(),
		Author:       commit.Author.Name,
		Email:        commit.Author.Email,
		Date:         commit.Author.When.Format(time.RFC1123Z),
		Message:      commit.Message,
		FilesChanged: summary.FilesChanged,
		Added:        summary.TotalAdded,
		Removed:      summary.TotalRemoved,
	}
}
