// Package finder enumerates files under a root directory by glob.
package finder

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/paths"
)

// DefaultExcludes are applied when the settings leave excludes unset
var DefaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.svn/**",
	"**/.hg/**",
	"**/.DS_Store",
}

var errLimitReached = errors.New("max results reached")

// GlobFinder implements domain.FileFinder on the local file system
type GlobFinder struct {
	// DefaultRoot is used when a lookup carries no root
	DefaultRoot string
}

// NewGlobFinder creates a new GlobFinder
func NewGlobFinder(defaultRoot string) *GlobFinder {
	return &GlobFinder{DefaultRoot: defaultRoot}
}

// FindFiles returns the files under rootPath matching pattern, as sorted
// root-relative forward-slash paths. A maxResults of zero or less means no limit.
func (f *GlobFinder) FindFiles(ctx context.Context, pattern, rootPath string, excludes domain.Excludes, maxResults int) ([]string, error) {
	if rootPath == "" {
		rootPath = f.DefaultRoot
	}
	if rootPath == "" {
		return nil, domain.NewAppError(domain.ErrInvalidInput, "Root path is required", 400, map[string]any{"pattern": pattern})
	}

	glob, err := rootedPattern(rootPath, pattern)
	if err != nil {
		return nil, err
	}

	excludePatterns := resolveExcludes(excludes)
	var files []string

	walkErr := doublestar.GlobWalk(os.DirFS(rootPath), glob, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if isExcluded(p, excludePatterns) {
			return nil
		}
		files = append(files, p)
		if maxResults > 0 && len(files) >= maxResults {
			return errLimitReached
		}
		return nil
	}, doublestar.WithFilesOnly())

	switch {
	case walkErr == nil, errors.Is(walkErr, errLimitReached):
	case errors.Is(walkErr, context.Canceled), errors.Is(walkErr, context.DeadlineExceeded):
		return nil, domain.NewAppErrorWithCause(domain.ErrTimeout, "File search cancelled", 408, walkErr, map[string]any{"pattern": pattern})
	default:
		return nil, domain.NewAppErrorWithCause(domain.ErrLookupFailed, "File search failed", 500, walkErr, map[string]any{"pattern": pattern, "root": rootPath})
	}

	slices.Sort(files)
	log.Debug().Str("pattern", glob).Str("root", rootPath).Int("files", len(files)).Msg("Glob lookup finished")
	return files, nil
}

// rootedPattern turns a locator glob into a pattern relative to root
func rootedPattern(root, pattern string) (string, error) {
	glob := paths.Normalize(pattern)
	if filepath.IsAbs(pattern) || strings.HasPrefix(glob, "/") {
		rel := paths.Relative(root, glob)
		if rel == glob {
			return "", domain.NewAppError(domain.ErrInvalidInput, "Pattern is outside the root", 400, map[string]any{"pattern": pattern, "root": root})
		}
		glob = rel
	}
	glob = strings.TrimPrefix(glob, "./")

	if !doublestar.ValidatePattern(glob) {
		return "", domain.NewAppError(domain.ErrInvalidInput, "Invalid glob pattern", 400, map[string]any{"pattern": pattern})
	}
	return glob, nil
}

func resolveExcludes(excludes domain.Excludes) []string {
	switch excludes.Mode {
	case domain.ExcludeNone:
		return nil
	case domain.ExcludePatterns:
		return excludes.Patterns
	default:
		return DefaultExcludes
	}
}

func isExcluded(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}
