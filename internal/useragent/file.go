package useragent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk crawler list:
//
//	patterns:
//	  - WhatsApp
//	  - Twitterbot
type File struct {
	Patterns []string `yaml:"patterns"`
}

// LoadFile reads a YAML crawler list and builds a Classifier from it.
func LoadFile(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crawler list: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse crawler list %s: %w", path, err)
	}
	c := New(f.Patterns)
	if len(c.patterns) == 0 {
		return nil, fmt.Errorf("crawler list %s has no patterns", path)
	}
	return c, nil
}
