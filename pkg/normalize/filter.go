package normalize

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// defaultExcludes are always-on glob patterns for generated and vendored
// files that add noise without information.
var defaultExcludes = []string{
	"*.lock",
	"package-lock.json",
	"yarn.lock",
	"Gemfile.lock",
	"go.sum",
	"node_modules/*",
	"vendor/*",
	"__pycache__/*",
	"*.pyc",
	".git/*",
	".DS_Store",
	"Thumbs.db",
	"*.min.js",
	"*.min.css",
}

// textExtensions is the allow-list of extensions rendered as text diffs.
var textExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true,
	".cs": true, ".go": true, ".rs": true, ".rb": true, ".php": true,
	".swift": true, ".kt": true, ".scala": true, ".r": true,
	".md": true, ".txt": true, ".json": true, ".xml": true, ".yaml": true,
	".yml": true, ".toml": true, ".ini": true, ".cfg": true,
	".html": true, ".css": true, ".scss": true, ".sass": true, ".less": true,
	".vue": true, ".svelte": true,
	".sh": true, ".bash": true, ".zsh": true, ".fish": true,
	".ps1": true, ".bat": true, ".cmd": true,
	".sql": true, ".graphql": true, ".proto": true,
	".mod": true, ".tf": true, ".gradle": true,
}

// wellKnownNames are extensionless files treated as text.
var wellKnownNames = map[string]bool{
	"makefile":    true,
	"dockerfile":  true,
	"jenkinsfile": true,
	"rakefile":    true,
	"gemfile":     true,
	"procfile":    true,
}

type fileFilter struct {
	patterns []string
}

func newFileFilter(userPatterns []string) *fileFilter {
	patterns := make([]string, 0, len(defaultExcludes)+len(userPatterns))
	patterns = append(patterns, defaultExcludes...)
	patterns = append(patterns, userPatterns...)

	return &fileFilter{patterns: patterns}
}

// excluded reports whether the path matches any exclude pattern. Patterns
// match against the full path, the base name, and any directory prefix, so
// "node_modules/*" excludes nested trees as well. Vendored paths per enry's
// heuristics are excluded too.
func (f *fileFilter) excluded(filePath string) bool {
	base := path.Base(filePath)

	for _, pattern := range f.patterns {
		if matched, _ := path.Match(pattern, filePath); matched {
			return true
		}

		if matched, _ := path.Match(pattern, base); matched {
			return true
		}

		if dirPattern, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(filePath, dirPattern+"/") || strings.Contains(filePath, "/"+dirPattern+"/") {
				return true
			}
		}
	}

	return enry.IsVendor(filePath)
}

// textLike reports whether the path looks like a renderable text format,
// by extension allow-list, well-known name, or enry's extension database.
func (f *fileFilter) textLike(filePath string) bool {
	base := strings.ToLower(path.Base(filePath))
	if wellKnownNames[base] {
		return true
	}

	ext := strings.ToLower(path.Ext(filePath))
	if ext == "" {
		return false
	}

	if textExtensions[ext] {
		return true
	}

	if lang, ok := enry.GetLanguageByExtension(filePath); ok && lang != "" {
		return !enry.IsImage(filePath)
	}

	return false
}
