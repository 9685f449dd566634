// Package config loads mapping files: the tables to register before
// decomposition and the engine policies, written as YAML or TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/nestedtables/internal/engine"
)

const CurrentVersion = "1"

// Mapping is the content of a mapping file. Unset policies keep the value of
// the configuration they are applied to.
type Mapping struct {
	Version string `yaml:"version" toml:"version"`

	AutoCreate            *bool  `yaml:"auto_create" toml:"auto_create"`
	AllowValueUpdate      *bool  `yaml:"allow_value_update" toml:"allow_value_update"`
	AllowSingleRootScalar *bool  `yaml:"allow_single_root_scalar" toml:"allow_single_root_scalar"`
	Transparent           *bool  `yaml:"transparent" toml:"transparent"`
	ListOfList            string `yaml:"list_of_list" toml:"list_of_list"`
	Link                  string `yaml:"link" toml:"link"`
	MaxDepth              int    `yaml:"max_depth" toml:"max_depth"`

	Tables  []Table `yaml:"tables" toml:"tables"`
	Aliases []Alias `yaml:"aliases" toml:"aliases"`
}

// Table describes one table registered before decomposition.
type Table struct {
	Path        string   `yaml:"path" toml:"path"`
	Name        string   `yaml:"name" toml:"name"`
	IDColumn    string   `yaml:"id_column" toml:"id_column"`
	RefIDColumn string   `yaml:"ref_id_column" toml:"ref_id_column"`
	Patterns    []string `yaml:"patterns" toml:"patterns"`
	Aliases     []string `yaml:"aliases" toml:"aliases"`
}

// Alias redirects Path to the table of Canonical.
type Alias struct {
	Path      string `yaml:"path" toml:"path"`
	Canonical string `yaml:"canonical" toml:"canonical"`
}

// LoadFile loads a mapping file; the extension selects YAML or TOML.
func LoadFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml", "":
		return Parse(data)
	default:
		return nil, fmt.Errorf("unsupported mapping file %s (must be .yaml, .yml or .toml)", path)
	}
}

// Parse parses YAML data into a Mapping. Unknown keys are rejected.
func Parse(data []byte) (*Mapping, error) {
	var m Mapping

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}

	return finish(&m)
}

// ParseTOML parses TOML data into a Mapping. Unknown keys are rejected.
func ParseTOML(data []byte) (*Mapping, error) {
	var m Mapping

	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapping TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("failed to parse mapping TOML: unknown keys %s", strings.Join(keys, ", "))
	}

	return finish(&m)
}

func finish(m *Mapping) (*Mapping, error) {
	applyDefaults(m)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(m *Mapping) {
	if m.Version == "" {
		m.Version = CurrentVersion
	}
	for i := range m.Tables {
		m.Tables[i].Path = strings.TrimSpace(m.Tables[i].Path)
	}
}

// Validate checks the policies and that no path is listed twice.
func (m *Mapping) Validate() error {
	if m.Version != CurrentVersion {
		return fmt.Errorf("unsupported mapping version %q", m.Version)
	}
	if _, err := engine.ParseListPolicy(m.ListOfList); err != nil {
		return err
	}
	if _, err := engine.ParseLinkPolicy(m.Link); err != nil {
		return err
	}
	if m.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", m.MaxDepth)
	}

	seen := make(map[string]bool, len(m.Tables))
	for i, t := range m.Tables {
		if seen[t.Path] {
			return fmt.Errorf("tables[%d]: path %q listed twice", i, t.Path)
		}
		seen[t.Path] = true
	}
	for i, a := range m.Aliases {
		if a.Path == a.Canonical {
			return fmt.Errorf("aliases[%d]: %q aliased to itself", i, a.Path)
		}
	}
	return nil
}

// Apply overrides cfg with every policy the mapping sets.
func (m *Mapping) Apply(cfg engine.Config) (engine.Config, error) {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.AutoCreate, m.AutoCreate)
	set(&cfg.AllowValueUpdate, m.AllowValueUpdate)
	set(&cfg.AllowSingleRootScalar, m.AllowSingleRootScalar)
	set(&cfg.Transparent, m.Transparent)

	if m.ListOfList != "" {
		p, err := engine.ParseListPolicy(m.ListOfList)
		if err != nil {
			return cfg, err
		}
		cfg.ListOfList = p
	}
	if m.Link != "" {
		p, err := engine.ParseLinkPolicy(m.Link)
		if err != nil {
			return cfg, err
		}
		cfg.Link = p
	}
	if m.MaxDepth > 0 {
		cfg.MaxDepth = m.MaxDepth
	}
	return cfg, nil
}

// Register creates the mapping's tables and aliases on db, in file order.
func (m *Mapping) Register(db *engine.Database) error {
	for _, t := range m.Tables {
		_, err := db.CreateTable(engine.TableDef{
			Path:        t.Path,
			Name:        t.Name,
			IDColumn:    t.IDColumn,
			RefIDColumn: t.RefIDColumn,
			Patterns:    t.Patterns,
			Aliases:     t.Aliases,
		})
		if err != nil {
			return fmt.Errorf("failed to register table %q: %w", t.Path, err)
		}
	}
	for _, a := range m.Aliases {
		if err := db.Alias(a.Path, a.Canonical); err != nil {
			return fmt.Errorf("failed to register alias %q: %w", a.Path, err)
		}
	}
	return nil
}
