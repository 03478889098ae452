package ws

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	meshparts "github.com/gekko3d/meshparts"
	"github.com/gekko3d/meshparts/meshrt/classify"
	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/editor"
)

// Inbound message types.
const (
	MessageTypePing        = "ping"
	MessageTypePointer     = "pointer"
	MessageTypeKey         = "key"
	MessageTypeDetect      = "detect"
	MessageTypeSelectPart  = "select_part"
	MessageTypeClear       = "clear"
	MessageTypePartMode    = "part_mode"
	MessageTypeSmartSelect = "smart_select"
	MessageTypeScale       = "scale"
	MessageTypeCamera      = "camera"
	MessageTypeFrame       = "frame"
)

// Outbound message types.
const (
	MessageTypePong           = "pong"
	MessageTypeState          = "state"
	MessageTypeError          = "error"
	MessageTypeCameraControls = "camera_controls"
)

// Envelope wraps every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type SelectPartMessage struct {
	Name string `json:"name"`
}

type ToggleMessage struct {
	On bool `json:"on"`
}

type ScaleMessage struct {
	Factor mgl32.Vec3 `json:"factor"`
}

// FrameMessage carries the rendered viewport as base64 PNG.
type FrameMessage struct {
	PNG string `json:"png"`
}

// CameraControlsMessage tells the host whether its orbit controls may run.
type CameraControlsMessage struct {
	Attached bool `json:"attached"`
}

type ErrorMessage struct {
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}

type SegmentInfo struct {
	ID         string            `json:"id"`
	Category   string            `json:"category"`
	Confidence float32           `json:"confidence"`
	Fragments  []core.FragmentID `json:"fragments"`
}

// StateMessage is the full UI-facing snapshot sent after every change.
type StateMessage struct {
	Parts       []classify.Part           `json:"parts"`
	Selection   []core.FragmentID         `json:"selection"`
	Readout     *editor.ScaleReadout      `json:"readout,omitempty"`
	SmartSelect bool                      `json:"smart_select"`
	Busy        bool                      `json:"busy"`
	Segments    []SegmentInfo             `json:"segments,omitempty"`
	Status      []meshparts.StatusMessage `json:"status,omitempty"`
	Stats       meshparts.Stats           `json:"stats"`
}

func snapshot(s *meshparts.Session) StateMessage {
	st := StateMessage{
		Parts:       s.Parts(),
		Selection:   s.Selection(),
		SmartSelect: s.SmartSelectActive(),
		Busy:        s.SmartSelectBusy(),
		Status:      s.Status(),
		Stats:       s.Stats(),
	}
	if r, ok := s.Readout(); ok {
		st.Readout = &r
	}
	for _, seg := range s.Segments() {
		st.Segments = append(st.Segments, SegmentInfo{
			ID:         seg.ID,
			Category:   seg.Category,
			Confidence: seg.Confidence,
			Fragments:  seg.Fragments,
		})
	}
	return st
}

func encode(msgType string, v any) (Envelope, error) {
	env := Envelope{Type: msgType}
	if v == nil {
		return env, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msgType, err)
	}
	env.Data = data
	return env, nil
}

func decode[T any](env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("%s: %w", env.Type, err)
	}
	return v, nil
}
