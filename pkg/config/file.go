package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile decodes a YAML config file into a fresh Config (defaults already
// applied via New), for the embedding-UI path: "key/value record holding
// target path, process-all flag, font-size, theme index" generalized here to
// this tool's full option surface.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := New()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	// yaml.Unmarshal can't tell "key present, value equals what New() already
	// set" from "key absent", so the two fields Validate cares about for
	// mutual-exclusion checks are detected via a second, loosely-typed pass.
	var probe map[string]interface{}
	if err := yaml.Unmarshal(raw, &probe); err == nil {
		if _, ok := probe["mipmap_filter"]; ok {
			cfg.MipmapFilterExplicit = true
		}
		if _, ok := probe["alpha_format"]; ok {
			cfg.HasAlpha = true
		}
	}

	return cfg, nil
}
