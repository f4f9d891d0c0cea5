// Package clipboard holds the clipboard backends used by copy, cut and paste.
package clipboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"autopilot/internal/model"

	sysclip "github.com/atotto/clipboard"
)

// Memory keeps the clip in process. The zero value is empty and ready to use.
type Memory struct {
	mu   sync.Mutex
	clip *model.Clip
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Read() (model.Clip, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clip == nil {
		return model.Clip{}, false, nil
	}
	return cloneClip(*m.clip), true, nil
}

func (m *Memory) Write(c model.Clip) error {
	if err := validate(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneClip(c)
	m.clip = &cp
	return nil
}

// System exchanges clips through the OS clipboard as a JSON text envelope.
// Text that is not an envelope reads as empty.
type System struct {
	readAll  func() (string, error)
	writeAll func(string) error
}

func NewSystem() *System {
	return &System{readAll: sysclip.ReadAll, writeAll: sysclip.WriteAll}
}

// Available reports whether the OS clipboard can be used on this machine.
func Available() bool { return !sysclip.Unsupported }

func (s *System) Read() (model.Clip, bool, error) {
	text, err := s.readAll()
	if err != nil {
		return model.Clip{}, false, fmt.Errorf("read clipboard: %w", err)
	}
	c, ok := Decode(text)
	return c, ok, nil
}

func (s *System) Write(c model.Clip) error {
	text, err := Encode(c)
	if err != nil {
		return err
	}
	if err := s.writeAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// Encode renders the clip as the JSON envelope {"type": ..., "data": [...]}.
func Encode(c model.Clip) (string, error) {
	if err := validate(c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a JSON envelope. Anything else reports false.
func Decode(text string) (model.Clip, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return model.Clip{}, false
	}
	var c model.Clip
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return model.Clip{}, false
	}
	if validate(c) != nil {
		return model.Clip{}, false
	}
	return c, true
}

func validate(c model.Clip) error {
	if c.Type.ItemKind() == "" {
		return fmt.Errorf("clipboard: unknown clip type %q", c.Type)
	}
	if len(c.Data) == 0 {
		return errors.New("clipboard: empty clip")
	}
	return nil
}

func cloneClip(c model.Clip) model.Clip {
	out := model.Clip{Type: c.Type, Data: make([]model.Spec, 0, len(c.Data))}
	for _, s := range c.Data {
		out.Data = append(out.Data, s.Clone())
	}
	return out
}
