package loader

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
)

// SettingsLoader loads the configuration surface from the file system
type SettingsLoader interface {
	// Load reads every settings file and merges them into Settings. builtins
	// names the rulesets applied when the user never configured applyRulesets.
	Load(ctx context.Context, builtins []string) (domain.Settings, []LoadError, error)
	// GetLoadErrors returns errors from the last load operation
	GetLoadErrors() []LoadError
	// GetFiles returns the settings files found by the last load operation
	GetFiles() []ScannedFile
	// Candidates returns every path a settings file may appear at
	Candidates() []ScannedFile
}

// FileSettingsLoader implements SettingsLoader using YAML/JSON settings files
type FileSettingsLoader struct {
	scanner    *Scanner
	parser     *Parser
	validator  domain.Validator
	mu         sync.RWMutex
	files      []ScannedFile
	loadErrors []LoadError
}

// NewFileSettingsLoader creates a new FileSettingsLoader with the given configuration
func NewFileSettingsLoader(config ScanConfig, validator domain.Validator) *FileSettingsLoader {
	if validator == nil {
		validator = domain.NewValidator()
	}
	return &FileSettingsLoader{
		scanner:    NewScanner(config),
		parser:     NewParser(),
		validator:  validator,
		loadErrors: make([]LoadError, 0),
	}
}

// Load scans for the user and workspace settings files and merges them.
// A file that fails to parse or validate is recorded as a LoadError and
// contributes nothing; the returned error is reserved for scan failures.
func (l *FileSettingsLoader) Load(ctx context.Context, builtins []string) (domain.Settings, []LoadError, error) {
	scanned, err := l.scanner.Scan(ctx)
	if err != nil {
		return domain.Settings{}, nil, err
	}

	var user, workspace *SettingsFile
	var loadErrors []LoadError

	for _, file := range scanned {
		select {
		case <-ctx.Done():
			return domain.Settings{}, nil, ctx.Err()
		default:
		}

		parsed, loadErr := l.parser.ParseFile(file)
		if loadErr == nil {
			loadErr = l.validate(file, parsed)
		}
		if loadErr != nil {
			log.Warn().Str("file", loadErr.FilePath).Int("line", loadErr.Line).Str("error", loadErr.Error).Msg("Failed to load settings file")
			loadErrors = append(loadErrors, *loadErr)
			continue
		}

		switch file.SourceType {
		case domain.SourceUser:
			user = parsed
		case domain.SourceWorkspace:
			workspace = parsed
		}
	}

	settings := Merge(user, workspace, builtins)

	l.mu.Lock()
	l.files = scanned
	l.loadErrors = loadErrors
	l.mu.Unlock()

	log.Debug().
		Int("files", len(scanned)).
		Int("errors", len(loadErrors)).
		Strs("applied", settings.Applied()).
		Msg("Settings loaded")

	return settings, loadErrors, nil
}

func (l *FileSettingsLoader) validate(file ScannedFile, parsed *SettingsFile) *LoadError {
	candidate := domain.Settings{Rulesets: parsed.Rulesets}
	if parsed.ApplyRulesets != nil {
		candidate.ApplyRulesets = *parsed.ApplyRulesets
	}
	if err := l.validator.ValidateSettings(&candidate); err != nil {
		return &LoadError{FilePath: file.Path, Error: err.Error()}
	}
	return nil
}

// Merge combines user and workspace files into the configuration surface.
// A user file without applyRulesets, or no user file at all, applies every
// built-in ruleset; an explicit empty list applies none. Workspace values for
// ignoreExcludes and excludes take precedence over the user's.
func Merge(user, workspace *SettingsFile, builtins []string) domain.Settings {
	settings := domain.Settings{
		ApplyRulesets: append([]string(nil), builtins...),
	}

	if user != nil {
		if user.ApplyRulesets != nil {
			settings.ApplyRulesets = append([]string(nil), (*user.ApplyRulesets)...)
		}
		settings.Rulesets = user.Rulesets
		if user.IgnoreExcludes != nil {
			settings.IgnoreExcludes = *user.IgnoreExcludes
		}
		settings.Excludes = user.Excludes
	}

	if workspace != nil {
		if workspace.ApplyRulesets != nil {
			settings.ApplyWorkspaceRulesets = append([]string(nil), (*workspace.ApplyRulesets)...)
		}
		settings.WorkspaceRulesets = workspace.Rulesets
		if workspace.IgnoreExcludes != nil {
			settings.IgnoreExcludes = *workspace.IgnoreExcludes
		}
		if workspace.Excludes != nil {
			settings.Excludes = workspace.Excludes
		}
	}

	return settings
}

// GetLoadErrors returns errors from the last load operation
func (l *FileSettingsLoader) GetLoadErrors() []LoadError {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]LoadError, len(l.loadErrors))
	copy(result, l.loadErrors)
	return result
}

// GetFiles returns the settings files found by the last load operation
func (l *FileSettingsLoader) GetFiles() []ScannedFile {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]ScannedFile, len(l.files))
	copy(result, l.files)
	return result
}

// Candidates returns every path a settings file may appear at
func (l *FileSettingsLoader) Candidates() []ScannedFile {
	return l.scanner.Candidates()
}
