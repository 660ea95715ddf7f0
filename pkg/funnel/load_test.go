package funnel_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackkit/trackkit/pkg/funnel"
)

func TestParseDefinitions(t *testing.T) {
	t.Parallel()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		src := `
funnels:
  - id: signup
    name: Signup flow
    conversion_window: 2h
    steps:
      - name: landing
        match: {event_type: page_view, page_url: "/"}
      - name: form
        match: {event_type: page_view, page_url: "/signup"}
      - name: done
        match: {event_type: conversion}
  - id: calculator
    steps:
      - name: start
        match:
          event_type: calculator_step
          property_equals: {step: 1}
      - name: finish
        match:
          event_type: calculator_step
          property_equals: {step: 5}
`
		defs, err := funnel.ParseDefinitions(strings.NewReader(src))
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "signup", defs[0].ID)
		assert.Equal(t, 2*time.Hour, defs[0].ConversionWindow)
		assert.Len(t, defs[1].Steps, 2)
		assert.Equal(t, map[string]any{"step": 1}, defs[1].Steps[0].Match.PropertyEquals)
	})

	t.Run("rejects empty predicates", func(t *testing.T) {
		t.Parallel()
		src := `
funnels:
  - id: broken
    steps:
      - name: a
        match: {event_type: page_view}
      - name: b
        match: {}
`
		_, err := funnel.ParseDefinitions(strings.NewReader(src))
		assert.ErrorIs(t, err, funnel.ErrEmptyPredicate)
	})

	t.Run("rejects malformed windows", func(t *testing.T) {
		t.Parallel()
		src := `
funnels:
  - id: broken
    conversion_window: soon
    steps:
      - name: a
        match: {event_type: page_view}
      - name: b
        match: {event_type: conversion}
`
		_, err := funnel.ParseDefinitions(strings.NewReader(src))
		assert.ErrorIs(t, err, funnel.ErrInvalidDefinition)
	})
}
