package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

// Fixtures is the on-disk seed file for a memory store:
//
//	pets:
//	  - id: 3f2b8c1e
//	    name: Bella
//	    image_url: https://cdn.example.com/bella.jpg
type Fixtures struct {
	Pets []pet.Pet `yaml:"pets"`
}

// LoadFixtures builds a PetStore seeded from a YAML fixtures file.
func LoadFixtures(path string) (*PetStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pet fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse pet fixtures %s: %w", path, err)
	}
	for i, p := range f.Pets {
		if p.ID == "" {
			return nil, fmt.Errorf("pet fixtures %s: entry %d has no id", path, i)
		}
	}
	return NewPetStore(f.Pets...), nil
}
