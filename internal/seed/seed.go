// Package seed loads the department directory from YAML.
package seed

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/janmitra/backend/internal/models"
)

type file struct {
	Departments []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"departments"`
}

func LoadDepartments(path string) ([]models.Department, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseDepartments(f)
}

// ParseDepartments rejects blank and duplicate names. IDs are fresh; upserts
// match existing rows by name.
func ParseDepartments(r io.Reader) ([]models.Department, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse departments: %w", err)
	}
	seen := map[string]bool{}
	out := make([]models.Department, 0, len(doc.Departments))
	for i, d := range doc.Departments {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("department %d: name is required", i+1)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("department %q listed twice", name)
		}
		seen[key] = true
		out = append(out, models.Department{
			ID:          uuid.NewString(),
			Name:        name,
			Description: strings.TrimSpace(d.Description),
		})
	}
	return out, nil
}
