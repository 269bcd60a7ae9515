// Package runlog collects non-fatal warnings across one pipeline run.
// File- and hunk-level failures are recorded here instead of aborting the
// enclosing commit, and surfaced to the user at the end of the run.
package runlog

import (
	"log/slog"
	"sync"
)

// Stage names the pipeline stage a warning originated from.
type Stage string

// Pipeline stages.
const (
	StageResolve   Stage = "resolve"
	StageNormalize Stage = "normalize"
	StageRender    Stage = "render"
	StagePipeline  Stage = "pipeline"
)

// Warning is one recorded non-fatal failure.
type Warning struct {
	Stage  Stage
	Commit string // short hash, empty for scope-level warnings
	Path   string // file path, empty for commit-level warnings
	Err    error
}

// Recorder accumulates warnings for one run. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	warnings []Warning
	logger   *slog.Logger
}

// NewRecorder creates a Recorder that also mirrors warnings to the logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{logger: logger}
}

// Record appends one warning.
func (r *Recorder) Record(stage Stage, commit, path string, err error) {
	r.mu.Lock()
	r.warnings = append(r.warnings, Warning{Stage: stage, Commit: commit, Path: path, Err: err})
	r.mu.Unlock()

	r.logger.Warn("recorded warning",
		"stage", string(stage),
		"commit", commit,
		"path", path,
		"error", err,
	)
}

// Warnings returns a copy of all recorded warnings in record order.
func (r *Recorder) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)

	return out
}

// Len returns the number of recorded warnings.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.warnings)
}
