package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/freewebtopdf/find-related/internal/domain"
)

// SettingsFile is the on-disk shape of a user or workspace settings file.
// Pointer fields distinguish "absent" from an explicit empty value.
type SettingsFile struct {
	ApplyRulesets  *[]string        `yaml:"applyRulesets" json:"applyRulesets"`
	Rulesets       []domain.Ruleset `yaml:"rulesets" json:"rulesets"`
	IgnoreExcludes *bool            `yaml:"ignoreExcludes" json:"ignoreExcludes"`
	Excludes       []string         `yaml:"excludes" json:"excludes"`
}

// LoadError represents an error that occurred while loading a specific file
type LoadError struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
	Line     int    `json:"line,omitempty"`
}

// Parser handles parsing of settings files in YAML and JSON formats
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a settings file
func (p *Parser) ParseFile(scannedFile ScannedFile) (*SettingsFile, *LoadError) {
	data, err := os.ReadFile(scannedFile.Path)
	if err != nil {
		return nil, &LoadError{
			FilePath: scannedFile.Path,
			Error:    fmt.Sprintf("failed to read file: %v", err),
		}
	}

	return p.parseContent(data, scannedFile.Path)
}

// parseContent parses the file content based on file extension
func (p *Parser) parseContent(data []byte, filePath string) (*SettingsFile, *LoadError) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		return p.parseYAML(data, filePath)
	case ".json":
		return p.parseJSON(data, filePath)
	default:
		return nil, &LoadError{
			FilePath: filePath,
			Error:    fmt.Sprintf("unsupported file extension: %s", ext),
		}
	}
}

func (p *Parser) parseYAML(data []byte, filePath string) (*SettingsFile, *LoadError) {
	var file SettingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &LoadError{
			FilePath: filePath,
			Error:    fmt.Sprintf("failed to parse YAML: %v", err),
			Line:     extractYAMLErrorLine(err),
		}
	}
	return &file, nil
}

func (p *Parser) parseJSON(data []byte, filePath string) (*SettingsFile, *LoadError) {
	var file SettingsFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return &file, nil
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &LoadError{
			FilePath: filePath,
			Error:    fmt.Sprintf("failed to parse JSON: %v", err),
		}
	}
	return &file, nil
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// extractYAMLErrorLine pulls the first line number out of a yaml.v3 error message
func extractYAMLErrorLine(err error) int {
	if err == nil {
		return 0
	}
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	line, _ := strconv.Atoi(m[1])
	return line
}

// ParseContent parses settings content from bytes without file context
func (p *Parser) ParseContent(data []byte, format string) (*SettingsFile, error) {
	var file *SettingsFile
	var loadErr *LoadError

	switch strings.ToLower(format) {
	case "yaml", "yml":
		file, loadErr = p.parseYAML(data, "content.yaml")
	case "json":
		file, loadErr = p.parseJSON(data, "content.json")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	if loadErr != nil {
		return nil, fmt.Errorf("%s", loadErr.Error)
	}
	return file, nil
}
