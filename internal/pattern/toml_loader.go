package pattern

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// tomlFile mirrors the on-disk schema from spec §6:
//
//	[patterns.<name>]
//	pattern = "<regex with (?P<name>...) groups>"
//	tool = "<tool-name>"
//	description = "..."
//	priority = <int>
//	required_role = "<role>"   # optional
//	enabled = true|false
type tomlFile struct {
	Patterns map[string]tomlPattern `toml:"patterns"`
}

type tomlPattern struct {
	Pattern      string `toml:"pattern"`
	Tool         string `toml:"tool"`
	Description  string `toml:"description"`
	Priority     int    `toml:"priority"`
	RequiredRole string `toml:"required_role"`
	Enabled      bool   `toml:"enabled"`
}

// LoadTOML parses a keyword pattern file and registers every entry into r.
// parametersRequired mirrors Registry.Add's contract: it is applied to
// every loaded pattern.
func LoadTOML(r *Registry, path string, parametersRequired bool) error {
	var doc tomlFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return fmt.Errorf("pattern: decode %s: %w", path, err)
	}
	for name, tp := range doc.Patterns {
		re, err := regexp.Compile(tp.Pattern)
		if err != nil {
			return fmt.Errorf("pattern: %s: compile regex: %w", name, err)
		}
		p := Pattern{
			Name:         name,
			Regex:        re,
			Tool:         tp.Tool,
			Description:  tp.Description,
			Priority:     tp.Priority,
			RequiredRole: tp.RequiredRole,
			Enabled:      tp.Enabled,
		}
		if err := r.Add(p, parametersRequired); err != nil {
			return fmt.Errorf("pattern: %s: %w", name, err)
		}
	}
	return nil
}
