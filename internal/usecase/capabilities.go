package usecase

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Capability classifies what a backend can do for this service
type Capability string

const (
	CapabilityGenerate Capability = "generate"
	CapabilityNoQuota  Capability = "no_quota"
)

//go:embed capabilities.yaml
var embeddedCapabilities []byte

// CapabilityRule matches backend ids by exactly one of prefix, suffix or substring
type CapabilityRule struct {
	Prefix     string     `yaml:"prefix"`
	Suffix     string     `yaml:"suffix"`
	Contains   string     `yaml:"contains"`
	Capability Capability `yaml:"capability"`
}

func (r CapabilityRule) matches(id string) bool {
	switch {
	case r.Prefix != "":
		return strings.HasPrefix(id, r.Prefix)
	case r.Suffix != "":
		return strings.HasSuffix(id, r.Suffix)
	case r.Contains != "":
		return strings.Contains(id, r.Contains)
	}
	return false
}

// CapabilityTable is the versioned backend capability table
type CapabilityTable struct {
	Version int                   `yaml:"version"`
	Default Capability            `yaml:"default"`
	Models  map[string]Capability `yaml:"models"`
	Rules   []CapabilityRule      `yaml:"rules"`
}

// LoadCapabilities reads the capability table from path, or the embedded table when path is empty.
func LoadCapabilities(path string) (*CapabilityTable, error) {
	data := embeddedCapabilities
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read capabilities file: %w", err)
		}
		data = b
	}
	return ParseCapabilities(data)
}

// ParseCapabilities decodes and validates a YAML capability table.
func ParseCapabilities(data []byte) (*CapabilityTable, error) {
	var table CapabilityTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse capabilities: %w", err)
	}
	if table.Default == "" {
		table.Default = CapabilityGenerate
	}
	if !validCapability(table.Default) {
		return nil, fmt.Errorf("capabilities: unknown default capability %q", table.Default)
	}
	for id, c := range table.Models {
		if !validCapability(c) {
			return nil, fmt.Errorf("capabilities: model %q has unknown capability %q", id, c)
		}
	}
	for i, r := range table.Rules {
		matchers := 0
		for _, m := range []string{r.Prefix, r.Suffix, r.Contains} {
			if m != "" {
				matchers++
			}
		}
		if matchers != 1 {
			return nil, fmt.Errorf("capabilities: rule %d must set exactly one of prefix, suffix, contains", i)
		}
		if !validCapability(r.Capability) {
			return nil, fmt.Errorf("capabilities: rule %d has unknown capability %q", i, r.Capability)
		}
	}
	return &table, nil
}

func validCapability(c Capability) bool {
	return c == CapabilityGenerate || c == CapabilityNoQuota
}

// Lookup resolves the capability of a backend id.
func (t *CapabilityTable) Lookup(id string) Capability {
	id = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "models/"))
	if c, ok := t.Models[id]; ok {
		return c
	}
	for _, r := range t.Rules {
		if r.matches(id) {
			return r.Capability
		}
	}
	return t.Default
}

// Usable reports whether a backend id can serve recognition.
func (t *CapabilityTable) Usable(id string) bool {
	return t.Lookup(id) == CapabilityGenerate
}

// Filter keeps usable ids in order. When nothing would remain, ids is returned unchanged.
func (t *CapabilityTable) Filter(ids []string) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if t.Usable(id) {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return ids
	}
	return kept
}
