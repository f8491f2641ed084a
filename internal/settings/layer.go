package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/dsconf/internal/errors"
)

// LayerFileName is the settings file looked up in every layer directory.
const LayerFileName = "config.yaml"

// Conventional layer priorities. Higher wins.
const (
	PriorityWorkingDir = 300
	PriorityAppData    = 200
	PriorityUserData   = 100
)

// Layer is a read-only settings mapping loaded from one config.yaml.
type Layer struct {
	Path     string
	Priority int
	data     map[string]interface{}
}

// LoadLayer reads dir/config.yaml. A missing file yields an empty layer.
func LoadLayer(dir string, priority int) (*Layer, error) {
	path := filepath.Join(dir, LayerFileName)
	l := &Layer{Path: path, Priority: priority, data: map[string]interface{}{}}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &l.data); err != nil {
		return nil, dserrors.ConfigError{
			Field:      path,
			Message:    "invalid YAML: " + err.Error(),
			Suggestion: "Check the file with a YAML linter",
		}
	}
	if l.data == nil {
		l.data = map[string]interface{}{}
	}

	if err := validateSecretsManager(l.data); err != nil {
		return nil, dserrors.ConfigError{
			Field:      SecretsManagerSection,
			Message:    fmt.Sprintf("%s: %v", path, err),
			Suggestion: "See the secrets_manager section of the documentation for supported keys",
		}
	}
	return l, nil
}

// NewLayer wraps an in-memory mapping.
func NewLayer(data map[string]interface{}, priority int) *Layer {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Layer{Priority: priority, data: data}
}

// Lookup resolves a dot-path key. A missing intermediate key is a miss.
func (l *Layer) Lookup(key string) (interface{}, bool) {
	var cur interface{} = l.data
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
