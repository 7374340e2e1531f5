package loader

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/schema"
	"gopkg.in/yaml.v3"
)

// LoadDefinition loads, schema-validates and parses a job definition YAML file.
// A nil validator skips schema validation.
func LoadDefinition(path string, validator *schema.Validator) (*model.JobDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job definition file: %w", err)
	}

	def, err := ParseDefinition(data, validator)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Source = path
	return def, nil
}

// ParseDefinition validates and decodes a job definition document
func ParseDefinition(data []byte, validator *schema.Validator) (*model.JobDefinition, error) {
	if validator != nil {
		if err := validator.ValidateDefinition(data); err != nil {
			return nil, fmt.Errorf("job definition failed schema validation: %w", err)
		}
	}

	var def model.JobDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse job definition YAML: %w", err)
	}

	return &def, nil
}

// LoadDefinitionsFromDir loads every JobDefinition document under a config directory path.
// Supports glob patterns for recursive search:
//   - Exact path: non-recursive, reads *.yaml and *.yml directly inside the directory
//   - Path with * or **: the pattern is globbed (** crosses directories); matched
//     directories are walked recursively and matched YAML files are read directly.
//     A file reached through several matches is loaded once.
//
// Files whose kind is not JobDefinition are ignored. Results are sorted by job name.
func LoadDefinitionsFromDir(configDir string, validator *schema.Validator) ([]*model.JobDefinition, error) {
	isRecursive := strings.Contains(configDir, "*")

	var searchPaths []string
	if isRecursive {
		matches, err := doublestar.FilepathGlob(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate glob pattern %s: %w", configDir, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("glob pattern %s matched no directories", configDir)
		}
		searchPaths = matches
	} else {
		info, err := os.Stat(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to access config directory %s: %w", configDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("config path is not a directory: %s", configDir)
		}
		searchPaths = []string{configDir}
	}

	var files []string
	seen := make(map[string]bool)
	collect := func(path string) {
		path = filepath.Clean(path)
		if seen[path] {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, basePath := range searchPaths {
		if isRecursive {
			info, err := os.Stat(basePath)
			if err != nil {
				return nil, fmt.Errorf("failed to access %s: %w", basePath, err)
			}
			if !info.IsDir() {
				if isYAML(basePath) {
					collect(basePath)
				}
				continue
			}

			err = filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isYAML(path) {
					collect(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk directory %s: %w", basePath, err)
			}
			continue
		}

		entries, err := os.ReadDir(basePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", basePath, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && isYAML(entry.Name()) {
				collect(filepath.Join(basePath, entry.Name()))
			}
		}
	}

	defs := make([]*model.JobDefinition, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read job definition file: %w", err)
		}
		kind, err := documentKind(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if kind != model.KindJobDefinition {
			continue
		}

		def, err := ParseDefinition(data, validator)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		def.Source = path
		defs = append(defs, def)
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("no job definitions found in config path: %s", configDir)
	}

	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Metadata.Name < defs[j].Metadata.Name
	})
	return defs, nil
}

// LoadEvent loads a push event from a JSON or YAML file
func LoadEvent(path string) (*model.PushEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file %s: %w", path, err)
	}
	return ParseEvent(data)
}

// ParseEvent decodes a push event. JSON is tried first, then YAML.
func ParseEvent(data []byte) (*model.PushEvent, error) {
	var event model.PushEvent
	if err := json.Unmarshal(data, &event); err != nil {
		if yamlErr := yaml.Unmarshal(data, &event); yamlErr != nil {
			return nil, fmt.Errorf("failed to parse event as JSON or YAML: %w", err)
		}
	}
	if event.Branch == "" {
		return nil, fmt.Errorf("push event must name a branch")
	}
	return &event, nil
}

// LoadPlan reads a plan file written by the plan command
func LoadPlan(path string) (*model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}

	var plan model.Plan
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &plan); err != nil {
			if yamlErr := yaml.Unmarshal(data, &plan); yamlErr != nil {
				return nil, fmt.Errorf("failed to parse plan file as JSON or YAML: %w", err)
			}
		}
	}

	return &plan, nil
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

func documentKind(data []byte) (string, error) {
	var header struct {
		Kind string `yaml:"kind"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return "", fmt.Errorf("failed to parse YAML document: %w", err)
	}
	return header.Kind, nil
}
