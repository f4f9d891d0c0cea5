package project

import (
	"context"
	"fmt"

	"autopilot/internal/command"
	"autopilot/internal/store"
	"autopilot/internal/viewport"

	"go.uber.org/zap"
)

// SavedState is what the ui state store keeps per script.
type SavedState struct {
	Active    string                           `json:"active"`
	Viewports map[string]command.ViewportState `json:"viewports"`
}

func stateKey(scriptID, name string) string { return scriptID + "/" + name }

func viewportKey(scriptID, id string) string { return stateKey(scriptID, "viewport/"+id) }

// CurrentState captures the active viewport and each viewport's selection.
func (s *Session) CurrentState() SavedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStateLocked()
}

func (s *Session) currentStateLocked() SavedState {
	return SavedState{
		Active: s.active,
		Viewports: map[string]command.ViewportState{
			viewport.FlowID:   s.flowVP.Snapshot(),
			viewport.EditorID: s.editorVP.Snapshot(),
		},
	}
}

// SaveState persists the per-viewport selection and expansion state.
func (s *Session) SaveState(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.saveState(ctx)
}

func (s *Session) saveState(ctx context.Context) error {
	s.mu.Lock()
	scriptID := s.doc.Root().ID
	st := s.currentStateLocked()
	s.mu.Unlock()

	for id, vs := range st.Viewports {
		if err := store.PutJSON(ctx, s.state, viewportKey(scriptID, id), vs); err != nil {
			return fmt.Errorf("save %s state: %w", id, err)
		}
	}
	if err := s.state.Put(ctx, stateKey(scriptID, "active"), st.Active); err != nil {
		return fmt.Errorf("save active viewport: %w", err)
	}
	return nil
}

// RestoreState applies previously saved viewport state. Saved selections
// that no longer fit the document are pruned; missing entries are skipped.
func (s *Session) RestoreState(ctx context.Context) error {
	s.mu.Lock()
	scriptID := s.doc.Root().ID
	s.mu.Unlock()

	saved := map[string]command.ViewportState{}
	for _, id := range []string{viewport.FlowID, viewport.EditorID} {
		vs, ok, err := store.GetJSON[command.ViewportState](ctx, s.state, viewportKey(scriptID, id))
		if err != nil {
			s.log.Warn("invalid saved viewport state", zap.String("viewport", id), zap.Error(err))
			continue
		}
		if ok {
			saved[id] = vs
		}
	}
	active, hasActive, err := s.state.Get(ctx, stateKey(scriptID, "active"))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, vs := range saved {
		vp, _ := s.viewport(id)
		vp.Restore(vs)
		vp.Prune(s.doc)
	}
	if _, ok := s.viewport(active); hasActive && ok {
		s.active = active
	}
	return nil
}
