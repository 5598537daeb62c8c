package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/lazear/census2csv/internal/errors"
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// isYAML reports whether a path names a YAML document
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadFilter reads a filter document. YAML is used for .yaml/.yml files,
// JSON otherwise. An empty path yields the identity filter. Every failure
// is a CONFIG error.
func LoadFilter(path string) (*domain.Filter, error) {
	if path == "" {
		return domain.NewFilter(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("cannot read filter file", err).WithContext("path", path)
	}

	filter, err := ParseFilter(data, isYAML(path))
	if err != nil {
		return nil, apperrors.NewConfigError("invalid filter file", err).WithContext("path", path)
	}
	return filter, nil
}

// ParseFilter decodes and validates a filter document
func ParseFilter(data []byte, yamlDoc bool) (*domain.Filter, error) {
	var (
		filter *domain.Filter
		err    error
	)
	if yamlDoc {
		filter, err = domain.ParseFilterYAML(data)
	} else {
		filter, err = domain.ParseFilterJSON(data)
	}
	if err != nil {
		return nil, err
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return filter, nil
}

// EncodeFilter renders a filter as JSON (indented) or YAML
func EncodeFilter(filter *domain.Filter, yamlDoc bool) ([]byte, error) {
	if yamlDoc {
		return filter.EncodeYAML()
	}
	data, err := json.MarshalIndent(filter, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteExampleFilter writes the example filter document to path, choosing
// the format from the extension
func WriteExampleFilter(path string) error {
	if path == "" {
		path = ExampleFilterFile
	}

	data, err := EncodeFilter(domain.ExampleFilter(), isYAML(path))
	if err != nil {
		return fmt.Errorf("failed to encode example filter: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.NewStorageError("failed to create directory", err).WithContext("path", dir)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write example filter", err).WithContext("path", path)
	}
	return nil
}
