package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffreel/diffreel/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".diffreel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.DefaultRangeBase, cfg.Range.Base)
	assert.Equal(t, config.DefaultRangeMode, cfg.Range.Mode)
	assert.Equal(t, config.DefaultDiffMaxFiles, cfg.Diff.MaxFiles)
	assert.Equal(t, config.DefaultFileLineCeiling, cfg.Diff.FileLineCeiling)
	assert.Equal(t, config.DefaultCommitLineCeiling, cfg.Diff.CommitLineCeiling)
	assert.Empty(t, cfg.Diff.ExcludePatterns)
	assert.Equal(t, config.DefaultRenderWidth, cfg.Render.Width)
	assert.Equal(t, config.DefaultRenderRowsPerPage, cfg.Render.RowsPerPage)
	assert.Equal(t, config.DefaultRenderTabWidth, cfg.Render.TabWidth)
	assert.Equal(t, config.DefaultPipelineWorkers, cfg.Pipeline.Workers)
	assert.Equal(t, config.DefaultCommitTimeout, cfg.Pipeline.CommitTimeout)
	assert.Equal(t, config.DefaultOutputDir, cfg.Output.Dir)
	assert.Equal(t, config.DefaultOutputImageDir, cfg.Output.ImageDir)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	content := `range:
  base: develop
  mode: all
diff:
  max_files: 20
  file_line_ceiling: 150
  exclude_patterns:
    - "*.lock"
    - "dist/*"
render:
  width: 1600
  rows_per_page: 60
pipeline:
  workers: 8
  commit_timeout: "90s"
output:
  dir: out
  title: "release review"
`

	cfg, err := config.LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "develop", cfg.Range.Base)
	assert.Equal(t, config.RangeModeAllCommits, cfg.Range.Mode)
	assert.Equal(t, 20, cfg.Diff.MaxFiles)
	assert.Equal(t, 150, cfg.Diff.FileLineCeiling)
	assert.Equal(t, []string{"*.lock", "dist/*"}, cfg.Diff.ExcludePatterns)
	assert.Equal(t, 1600, cfg.Render.Width)
	assert.Equal(t, 60, cfg.Render.RowsPerPage)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "release review", cfg.Output.Title)

	timeout, err := cfg.CommitTimeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, timeout)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "bad mode",
			content: "range:\n  mode: sideways\n",
			wantErr: config.ErrInvalidRangeMode,
		},
		{
			name:    "negative workers",
			content: "pipeline:\n  workers: -1\n",
			wantErr: config.ErrInvalidWorkers,
		},
		{
			name:    "negative max files",
			content: "diff:\n  max_files: -5\n",
			wantErr: config.ErrInvalidMaxFiles,
		},
		{
			name:    "empty output dir",
			content: "output:\n  dir: \"\"\n",
			wantErr: config.ErrInvalidOutputDir,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tc.content))
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCommitTimeout_Invalid(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Pipeline: config.PipelineConfig{CommitTimeout: "soon"}}

	_, err := cfg.CommitTimeout()
	require.ErrorIs(t, err, config.ErrInvalidCommitTimeout)
}
