package config

import "errors"

// Config is the top-level configuration struct for diffreel.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Range    RangeConfig    `mapstructure:"range"`
	Diff     DiffConfig     `mapstructure:"diff"`
	Render   RenderConfig   `mapstructure:"render"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Output   OutputConfig   `mapstructure:"output"`
}

// RangeConfig holds commit range resolution settings.
type RangeConfig struct {
	Base string `mapstructure:"base"`
	Mode string `mapstructure:"mode"`
}

// DiffConfig holds normalization ceilings and filters.
type DiffConfig struct {
	MaxFiles          int      `mapstructure:"max_files"`
	FileLineCeiling   int      `mapstructure:"file_line_ceiling"`
	CommitLineCeiling int      `mapstructure:"commit_line_ceiling"`
	ExcludePatterns   []string `mapstructure:"exclude_patterns"`
}

// RenderConfig holds page geometry settings.
type RenderConfig struct {
	Width       int `mapstructure:"width"`
	RowsPerPage int `mapstructure:"rows_per_page"`
	TabWidth    int `mapstructure:"tab_width"`
}

// PipelineConfig holds concurrency knobs.
type PipelineConfig struct {
	Workers       int    `mapstructure:"workers"`
	CommitTimeout string `mapstructure:"commit_timeout"`
}

// OutputConfig holds output locations.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	ImageDir string `mapstructure:"image_dir"`
	Title    string `mapstructure:"title"`
}

// Range modes accepted in range.mode.
const (
	RangeModeBranchUnique = "branch-unique"
	RangeModeAllCommits   = "all"
)

// Configuration defaults.
const (
	DefaultRangeBase         = "main"
	DefaultRangeMode         = RangeModeBranchUnique
	DefaultDiffMaxFiles      = 10
	DefaultFileLineCeiling   = 100
	DefaultCommitLineCeiling = 1000
	DefaultRenderWidth       = 1200
	DefaultRenderRowsPerPage = 80
	DefaultRenderTabWidth    = 4
	DefaultPipelineWorkers   = 4
	DefaultCommitTimeout     = "2m"
	DefaultOutputDir         = "diffreel-out"
	DefaultOutputImageDir    = "images"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidRangeMode indicates range.mode is not a known mode.
	ErrInvalidRangeMode = errors.New("range.mode must be branch-unique or all")
	// ErrInvalidMaxFiles indicates diff.max_files is negative.
	ErrInvalidMaxFiles = errors.New("diff.max_files must be non-negative")
	// ErrInvalidFileLineCeiling indicates diff.file_line_ceiling is negative.
	ErrInvalidFileLineCeiling = errors.New("diff.file_line_ceiling must be non-negative")
	// ErrInvalidCommitLineCeiling indicates diff.commit_line_ceiling is negative.
	ErrInvalidCommitLineCeiling = errors.New("diff.commit_line_ceiling must be non-negative")
	// ErrInvalidRenderWidth indicates render.width is negative.
	ErrInvalidRenderWidth = errors.New("render.width must be non-negative")
	// ErrInvalidRowsPerPage indicates render.rows_per_page is negative.
	ErrInvalidRowsPerPage = errors.New("render.rows_per_page must be non-negative")
	// ErrInvalidTabWidth indicates render.tab_width is negative.
	ErrInvalidTabWidth = errors.New("render.tab_width must be non-negative")
	// ErrInvalidWorkers indicates pipeline.workers is negative.
	ErrInvalidWorkers = errors.New("pipeline.workers must be non-negative")
	// ErrInvalidCommitTimeout indicates pipeline.commit_timeout does not parse.
	ErrInvalidCommitTimeout = errors.New("pipeline.commit_timeout must be a duration")
	// ErrInvalidOutputDir indicates output.dir is empty.
	ErrInvalidOutputDir = errors.New("output.dir must not be empty")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Range.Mode != RangeModeBranchUnique && c.Range.Mode != RangeModeAllCommits {
		return ErrInvalidRangeMode
	}

	diffErr := c.validateDiff()
	if diffErr != nil {
		return diffErr
	}

	renderErr := c.validateRender()
	if renderErr != nil {
		return renderErr
	}

	if c.Pipeline.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Output.Dir == "" {
		return ErrInvalidOutputDir
	}

	return nil
}

func (c *Config) validateDiff() error {
	if c.Diff.MaxFiles < 0 {
		return ErrInvalidMaxFiles
	}

	if c.Diff.FileLineCeiling < 0 {
		return ErrInvalidFileLineCeiling
	}

	if c.Diff.CommitLineCeiling < 0 {
		return ErrInvalidCommitLineCeiling
	}

	return nil
}

func (c *Config) validateRender() error {
	if c.Render.Width < 0 {
		return ErrInvalidRenderWidth
	}

	if c.Render.RowsPerPage < 0 {
		return ErrInvalidRowsPerPage
	}

	if c.Render.TabWidth < 0 {
		return ErrInvalidTabWidth
	}

	return nil
}
