// Package pipeline runs ordered, gated sequences of worker stages.
package pipeline

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// ErrInvalidDefinition is returned when a pipeline cannot be built.
var ErrInvalidDefinition = errors.New("invalid pipeline definition")

// StageDefinition declares one stage.
type StageDefinition struct {
	Name     string          `yaml:"name"`
	TaskType models.TaskType `yaml:"task_type"`
	// WorkerID pins the stage to a worker and bypasses routing.
	WorkerID       string `yaml:"worker_id,omitempty"`
	BusinessAction string `yaml:"business_action,omitempty"`
	NextActionHint string `yaml:"next_action_hint,omitempty"`
	// Gate is evaluated on this stage's result before the next stage starts.
	Gate Gate `yaml:"gate,omitempty"`
	// ContinueOnDegraded defaults to true.
	ContinueOnDegraded *bool `yaml:"continue_on_degraded,omitempty"`
	// Payload is merged into the stage input.
	Payload models.Payload `yaml:"payload,omitempty"`
	// Critical marks the stage task as critical for priority scoring.
	Critical bool `yaml:"critical,omitempty"`
}

func (s StageDefinition) continueOnDegraded() bool {
	return s.ContinueOnDegraded == nil || *s.ContinueOnDegraded
}

// Definition is a named, ordered list of stages.
type Definition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Stages      []StageDefinition `yaml:"stages"`
}

// Parse decodes a single definition. Unknown fields and task types are errors.
func Parse(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return def, nil
}

// ParseFile decodes the definition stored at path.
func ParseFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadDir reads every *.yaml and *.yml file in dir, keyed by definition name.
func LoadDir(dir string) (map[string]Definition, error) {
	return loadFS(os.DirFS(dir), ".")
}

//go:embed pipelines/*.yaml
var builtin embed.FS

// Builtin returns the bundled reference pipelines.
func Builtin() map[string]Definition {
	defs, err := loadFS(builtin, "pipelines")
	if err != nil {
		panic(fmt.Sprintf("bundled pipelines are invalid: %v", err))
	}
	return defs
}

func loadFS(fsys fs.FS, dir string) (map[string]Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline directory: %w", err)
	}
	defs := make(map[string]Definition)
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, e.Name())))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		def, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := defs[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate pipeline name %q", ErrInvalidDefinition, def.Name)
		}
		defs[def.Name] = def
	}
	return defs, nil
}

// Names returns the sorted keys of defs.
func Names(defs map[string]Definition) []string {
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
