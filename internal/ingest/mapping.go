// Package ingest parses uploaded price lists, diffs them against live
// inventory, and decides whether the change set is safe to publish unattended.
package ingest

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// HeaderMapping maps a developer's spreadsheet headers onto interpreted
// fields. Each field lists the header names that developer uses for it.
// The mapping is injected into the parser; when a developer has none, the
// parser falls back to keyword matching.
type HeaderMapping struct {
	UnitCode      []string `yaml:"unit_code"`
	Beds          []string `yaml:"beds"`
	SizeSqft      []string `yaml:"size_sqft"`
	Price         []string `yaml:"price"`
	Status        []string `yaml:"status"`
	ServiceCharge []string `yaml:"service_charge"`
	Building      []string `yaml:"building"`
	Floor         []string `yaml:"floor"`
}

// MappingTable is the full developer→mapping lookup, maintained as a YAML
// file alongside the service config.
type MappingTable struct {
	Developers map[string]HeaderMapping `yaml:"developers"`
}

// LoadMappingTable reads a mapping table from disk. A missing file is not an
// error: every developer then falls through to keyword matching.
func LoadMappingTable(path string) (*MappingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MappingTable{Developers: map[string]HeaderMapping{}}, nil
		}
		return nil, eris.Wrapf(err, "ingest: read mapping table %s", path)
	}

	var t MappingTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse mapping table %s", path)
	}
	if t.Developers == nil {
		t.Developers = map[string]HeaderMapping{}
	}
	return &t, nil
}

// For returns the mapping for a developer key, or nil when none is defined.
func (t *MappingTable) For(developer string) *HeaderMapping {
	if t == nil {
		return nil
	}
	m, ok := t.Developers[strings.ToLower(strings.TrimSpace(developer))]
	if !ok {
		return nil
	}
	return &m
}

// matches reports whether header equals any of the mapped names,
// case-insensitively.
func matches(header string, names []string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, n := range names {
		if h == strings.ToLower(strings.TrimSpace(n)) {
			return true
		}
	}
	return false
}
