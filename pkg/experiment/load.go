package experiment

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// definitionFile is the on-disk shape of an experiment definition file.
type definitionFile struct {
	Experiments []Experiment `yaml:"experiments"`
}

// ParseDefinitions decodes and validates a YAML stream of experiment
// definitions:
//
//	experiments:
//	  - id: exp_1
//	    status: active
//	    traffic_allocation: 1.0
//	    variants:
//	      - {id: control, weight: 0.5}
//	      - {id: treatment, weight: 0.5}
func ParseDefinitions(r io.Reader) ([]Experiment, error) {
	var file definitionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{}, len(file.Experiments))
	for i := range file.Experiments {
		exp := &file.Experiments[i]
		if exp.Status == "" {
			exp.Status = StatusDraft
		}
		if err := exp.Validate(); err != nil {
			return nil, fmt.Errorf("experiment %d: %w", i, err)
		}
		if _, dup := seen[exp.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDefinition, exp.ID)
		}
		seen[exp.ID] = struct{}{}
	}
	return file.Experiments, nil
}

// LoadDefinitions reads experiment definitions from a YAML file.
func LoadDefinitions(path string) ([]Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definitions: %w", err)
	}
	defer f.Close()
	return ParseDefinitions(f)
}
