package meshparts

import (
	"fmt"
	"strings"

	"github.com/gekko3d/meshparts/meshrt/editor"
)

type Key int

const (
	KeyUnknown Key = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	KeySpace
	KeyEnter
	KeyEscape
	KeyTab
	KeyBackspace
	KeyDelete
)

var keyNames = map[string]Key{
	"space":     KeySpace,
	"enter":     KeyEnter,
	"escape":    KeyEscape,
	"esc":       KeyEscape,
	"tab":       KeyTab,
	"backspace": KeyBackspace,
	"delete":    KeyDelete,
}

// ParseKey accepts a single letter or a named key such as "escape".
func ParseKey(s string) (Key, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		return KeyA + Key(s[0]-'a'), nil
	}
	if k, ok := keyNames[s]; ok {
		return k, nil
	}
	return KeyUnknown, fmt.Errorf("unknown key %q", s)
}

type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

type Modifiers struct {
	Shift bool `json:"shift,omitempty"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Meta  bool `json:"meta,omitempty"`
	Alt   bool `json:"alt,omitempty"`
}

func (m Modifiers) editor() editor.Modifiers {
	var out editor.Modifiers
	if m.Shift {
		out |= editor.ModShift
	}
	if m.Ctrl {
		out |= editor.ModCtrl
	}
	if m.Meta {
		out |= editor.ModMeta
	}
	if m.Alt {
		out |= editor.ModAlt
	}
	return out
}

type PointerKind string

const (
	PointerDown   PointerKind = "down"
	PointerMove   PointerKind = "move"
	PointerUp     PointerKind = "up"
	PointerDouble PointerKind = "double"
)

// PointerEvent is delivered by the host in canvas pixels. Up events must be
// delivered even when released outside the canvas.
type PointerEvent struct {
	Kind   PointerKind `json:"kind"`
	X      float32     `json:"x"`
	Y      float32     `json:"y"`
	Button MouseButton `json:"button"`
	Mods   Modifiers   `json:"mods"`
	// OverUI is set when the pointer is over a host control.
	OverUI bool `json:"over_ui,omitempty"`
}

type KeyEvent struct {
	Key  Key       `json:"key"`
	Mods Modifiers `json:"mods"`
}
