package ws

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	meshparts "github.com/gekko3d/meshparts"
)

func (s *Server) registerDefaults() {
	s.RegisterHandler(MessageTypePing, handlePing)
	s.RegisterHandler(MessageTypePointer, handlePointer)
	s.RegisterHandler(MessageTypeKey, handleKey)
	s.RegisterHandler(MessageTypeDetect, handleDetect)
	s.RegisterHandler(MessageTypeSelectPart, handleSelectPart)
	s.RegisterHandler(MessageTypeClear, handleClear)
	s.RegisterHandler(MessageTypePartMode, handlePartMode)
	s.RegisterHandler(MessageTypeSmartSelect, handleSmartSelect)
	s.RegisterHandler(MessageTypeScale, handleScale)
	s.RegisterHandler(MessageTypeCamera, handleCamera)
	s.RegisterHandler(MessageTypeFrame, handleFrame)
}

func handlePing(*meshparts.Session, Envelope) error { return nil }

func handlePointer(sess *meshparts.Session, env Envelope) error {
	ev, err := decode[meshparts.PointerEvent](env)
	if err != nil {
		return err
	}
	return sess.Pointer(ev)
}

func handleKey(sess *meshparts.Session, env Envelope) error {
	ev, err := decode[meshparts.KeyEvent](env)
	if err != nil {
		return err
	}
	return sess.Key(ev)
}

func handleDetect(sess *meshparts.Session, _ Envelope) error {
	_, err := sess.Detect()
	return err
}

func handleSelectPart(sess *meshparts.Session, env Envelope) error {
	msg, err := decode[SelectPartMessage](env)
	if err != nil {
		return err
	}
	return sess.SelectPart(msg.Name)
}

func handleClear(sess *meshparts.Session, _ Envelope) error {
	sess.ClearSelection()
	return nil
}

func handlePartMode(sess *meshparts.Session, env Envelope) error {
	msg, err := decode[ToggleMessage](env)
	if err != nil {
		return err
	}
	sess.SetPartMode(msg.On)
	return nil
}

func handleSmartSelect(sess *meshparts.Session, env Envelope) error {
	msg, err := decode[ToggleMessage](env)
	if err != nil {
		return err
	}
	if !msg.On {
		sess.DeactivateSmartSelect()
		return nil
	}
	return sess.ActivateSmartSelect()
}

func handleScale(sess *meshparts.Session, env Envelope) error {
	msg, err := decode[ScaleMessage](env)
	if err != nil {
		return err
	}
	return sess.Scale(msg.Factor)
}

// handleCamera follows the host after it orbits or resizes. Both look-at and
// raw matrix forms are accepted.
func handleCamera(sess *meshparts.Session, env Envelope) error {
	def, err := decode[meshparts.CameraDef](env)
	if err != nil {
		return err
	}
	return sess.SetCamera(def.Camera())
}

func handleFrame(sess *meshparts.Session, env Envelope) error {
	msg, err := decode[FrameMessage](env)
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(msg.PNG)
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	sess.SetFrame(img)
	return nil
}
