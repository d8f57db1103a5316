// Package loader discovers and parses find-related settings files and the
// built-in rulesets bundled with the binary.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/freewebtopdf/find-related/internal/domain"
)

// AppDirName is the directory under the XDG config home holding user settings
const AppDirName = "find-related"

// SettingsExtensions defines the extensions recognized for settings files, in lookup order
var SettingsExtensions = []string{".yaml", ".yml", ".json"}

// ScanConfig holds the locations to search for settings files
type ScanConfig struct {
	UserFile      string // Explicit user settings file; empty means search the XDG config dirs
	WorkspaceRoot string // Root searched for .findrelated.{yaml,yml,json}
}

// ScannedFile represents a discovered settings file with its scope
type ScannedFile struct {
	Path       string
	SourceType domain.SourceType
}

// Scanner locates the user and workspace settings files
type Scanner struct {
	config ScanConfig
}

// NewScanner creates a new Scanner with the given configuration
func NewScanner(config ScanConfig) *Scanner {
	return &Scanner{config: config}
}

// Scan returns the settings files that exist, user file first
func (s *Scanner) Scan(ctx context.Context) ([]ScannedFile, error) {
	var files []ScannedFile

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	userFile, err := s.findUserFile()
	if err != nil {
		return nil, err
	}
	if userFile != "" {
		files = append(files, ScannedFile{Path: userFile, SourceType: domain.SourceUser})
	}

	workspaceFile, err := s.findWorkspaceFile()
	if err != nil {
		return nil, err
	}
	if workspaceFile != "" {
		files = append(files, ScannedFile{Path: workspaceFile, SourceType: domain.SourceWorkspace})
	}

	return files, nil
}

// Candidates returns every path a settings file may appear at. The watcher
// uses it to observe files that do not exist yet.
func (s *Scanner) Candidates() []ScannedFile {
	var out []ScannedFile

	if s.config.UserFile != "" {
		out = append(out, ScannedFile{Path: s.config.UserFile, SourceType: domain.SourceUser})
	} else {
		for _, ext := range SettingsExtensions {
			out = append(out, ScannedFile{
				Path:       filepath.Join(xdg.ConfigHome, AppDirName, "settings"+ext),
				SourceType: domain.SourceUser,
			})
		}
	}

	if s.config.WorkspaceRoot != "" {
		for _, ext := range SettingsExtensions {
			out = append(out, ScannedFile{
				Path:       filepath.Join(s.config.WorkspaceRoot, ".findrelated"+ext),
				SourceType: domain.SourceWorkspace,
			})
		}
	}

	return out
}

func (s *Scanner) findUserFile() (string, error) {
	if s.config.UserFile != "" {
		return existing(s.config.UserFile)
	}

	for _, ext := range SettingsExtensions {
		path, err := xdg.SearchConfigFile(filepath.Join(AppDirName, "settings"+ext))
		if err == nil {
			return path, nil
		}
	}
	return "", nil
}

func (s *Scanner) findWorkspaceFile() (string, error) {
	if s.config.WorkspaceRoot == "" {
		return "", nil
	}

	for _, ext := range SettingsExtensions {
		path, err := existing(filepath.Join(s.config.WorkspaceRoot, ".findrelated"+ext))
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}
	return "", nil
}

// existing returns path when it names a regular file, "" when nothing is there
func existing(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", nil
	}
	return path, nil
}

// isSettingsFile checks if a path has a recognized settings extension
func isSettingsFile(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range SettingsExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
