package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/trackkit/trackkit/pkg/kv"
)

// Progress is a session's live position in a funnel, kept in the key-value
// store while the conversion window is open.
type Progress struct {
	SessionID      string    `json:"session_id"`
	FunnelID       string    `json:"funnel_id"`
	CompletedSteps []int     `json:"completed_steps"`
	CurrentStep    int       `json:"current_step"`
	FirstStepAt    time.Time `json:"first_step_at"`
}

func progressKey(sessionID, funnelID string) string {
	return "funnel:progress:" + sessionID + ":" + funnelID
}

// TrackStep records that a session reached the named step of a registered
// funnel. Repeat calls for the same step are no-ops. The progress entry
// expires with the funnel's conversion window, so abandoned sessions clean
// themselves up.
func (e *Engine) TrackStep(ctx context.Context, funnelID, sessionID, stepName string) error {
	if e.progress == nil {
		return fmt.Errorf("funnel %q: no key-value store configured", funnelID)
	}
	def, err := e.Definition(funnelID)
	if err != nil {
		return err
	}
	idx, ok := def.stepIndex(stepName)
	if !ok {
		return fmt.Errorf("%w: %q in funnel %q", ErrUnknownStep, stepName, funnelID)
	}

	lock := e.locks.lock(sessionID + ":" + funnelID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	key := progressKey(sessionID, funnelID)
	progress := Progress{
		SessionID:   sessionID,
		FunnelID:    funnelID,
		FirstStepAt: e.clock.Now(),
	}
	raw, err := e.progress.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &progress); err != nil {
			return fmt.Errorf("decode progress %q: %w", key, err)
		}
	case !errors.Is(err, kv.ErrNotFound):
		return fmt.Errorf("load progress %q: %w", key, err)
	}

	if slices.Contains(progress.CompletedSteps, idx) {
		return nil
	}
	progress.CompletedSteps = append(progress.CompletedSteps, idx)
	progress.CurrentStep = max(progress.CurrentStep, idx)

	updated, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress %q: %w", key, err)
	}
	if err := e.progress.Set(ctx, key, updated, def.ConversionWindow); err != nil {
		return fmt.Errorf("persist progress %q: %w", key, err)
	}
	return nil
}

// Progress returns a session's live funnel position. ErrNotFound when the
// session has not reached any step or its window expired.
func (e *Engine) Progress(ctx context.Context, funnelID, sessionID string) (*Progress, error) {
	if e.progress == nil {
		return nil, fmt.Errorf("funnel %q: no key-value store configured", funnelID)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	raw, err := e.progress.Get(ctx, progressKey(sessionID, funnelID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: no progress for session %q in funnel %q", ErrNotFound, sessionID, funnelID)
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	var progress Progress
	if err := json.Unmarshal(raw, &progress); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &progress, nil
}
