package funnel

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// definitionFile is the on-disk shape of a funnel definition file.
type definitionFile struct {
	Funnels []Definition `yaml:"funnels"`
}

// UnmarshalYAML accepts windows in time.ParseDuration notation ("24h",
// "90m"), which plain yaml decoding of time.Duration does not.
func (d *Definition) UnmarshalYAML(node *yaml.Node) error {
	var aux struct {
		ID                string            `yaml:"id"`
		Name              string            `yaml:"name"`
		Steps             []Step            `yaml:"steps"`
		ConversionWindow  string            `yaml:"conversion_window"`
		AttributionWindow string            `yaml:"attribution_window"`
		Filters           map[string]string `yaml:"filters"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}

	d.ID = aux.ID
	d.Name = aux.Name
	d.Steps = aux.Steps
	d.Filters = aux.Filters
	if aux.ConversionWindow != "" {
		w, err := time.ParseDuration(aux.ConversionWindow)
		if err != nil {
			return fmt.Errorf("conversion_window: %w", err)
		}
		d.ConversionWindow = w
	}
	if aux.AttributionWindow != "" {
		w, err := time.ParseDuration(aux.AttributionWindow)
		if err != nil {
			return fmt.Errorf("attribution_window: %w", err)
		}
		d.AttributionWindow = w
	}
	return nil
}

// ParseDefinitions decodes and validates a YAML stream of funnel
// definitions:
//
//	funnels:
//	  - id: signup
//	    conversion_window: 24h
//	    steps:
//	      - name: landing
//	        match: {event_type: page_view, page_url: "/"}
//	      - name: form
//	        match: {event_type: page_view, page_url: "/signup"}
//	      - name: done
//	        match: {event_type: conversion}
func ParseDefinitions(r io.Reader) ([]Definition, error) {
	var file definitionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{}, len(file.Funnels))
	for i := range file.Funnels {
		def := &file.Funnels[i]
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("funnel %d: %w", i, err)
		}
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDefinition, def.ID)
		}
		seen[def.ID] = struct{}{}
	}
	return file.Funnels, nil
}

// LoadDefinitions reads funnel definitions from a YAML file.
func LoadDefinitions(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definitions: %w", err)
	}
	defer f.Close()
	return ParseDefinitions(f)
}
