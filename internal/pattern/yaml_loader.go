package pattern

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// yamlFile mirrors the same logical schema as tomlFile, for operators who
// prefer YAML config over the TOML format spec §6 names as primary.
type yamlFile struct {
	Patterns map[string]yamlPattern `yaml:"patterns"`
}

type yamlPattern struct {
	Pattern      string `yaml:"pattern"`
	Tool         string `yaml:"tool"`
	Description  string `yaml:"description"`
	Priority     int    `yaml:"priority"`
	RequiredRole string `yaml:"required_role"`
	Enabled      bool   `yaml:"enabled"`
}

// LoadYAML is the YAML-format counterpart to LoadTOML.
func LoadYAML(r *Registry, path string, parametersRequired bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("pattern: read %s: %w", path, err)
	}
	var doc yamlFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("pattern: decode %s: %w", path, err)
	}
	for name, yp := range doc.Patterns {
		re, err := regexp.Compile(yp.Pattern)
		if err != nil {
			return fmt.Errorf("pattern: %s: compile regex: %w", name, err)
		}
		p := Pattern{
			Name:         name,
			Regex:        re,
			Tool:         yp.Tool,
			Description:  yp.Description,
			Priority:     yp.Priority,
			RequiredRole: yp.RequiredRole,
			Enabled:      yp.Enabled,
		}
		if err := r.Add(p, parametersRequired); err != nil {
			return fmt.Errorf("pattern: %s: %w", name, err)
		}
	}
	return nil
}
