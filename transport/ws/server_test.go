package ws

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	meshparts "github.com/gekko3d/meshparts"
	"github.com/gekko3d/meshparts/meshrt/core"
)

func appendBox(pos []float32, idx []uint32, lo, hi mgl32.Vec3) ([]float32, []uint32) {
	base := uint32(len(pos) / 3)
	for i := 0; i < 8; i++ {
		p := lo
		if i&1 != 0 {
			p[0] = hi[0]
		}
		if i&2 != 0 {
			p[1] = hi[1]
		}
		if i&4 != 0 {
			p[2] = hi[2]
		}
		pos = append(pos, p[0], p[1], p[2])
	}
	for _, f := range []uint32{0, 3, 1, 0, 2, 3, 4, 5, 7, 4, 7, 6, 0, 1, 5, 0, 5, 4, 2, 6, 7, 2, 7, 3, 0, 4, 6, 0, 6, 2, 1, 3, 7, 1, 7, 5} {
		idx = append(idx, base+f)
	}
	return pos, idx
}

func carSession(t *testing.T) *meshparts.Session {
	t.Helper()
	var pos []float32
	var idx []uint32
	pos, idx = appendBox(pos, idx, mgl32.Vec3{-1, 0.3, -2}, mgl32.Vec3{1, 1.3, 2})
	pos, idx = appendBox(pos, idx, mgl32.Vec3{-1.1, 0.5, -1}, mgl32.Vec3{-1, 1.0, 1})
	pos, idx = appendBox(pos, idx, mgl32.Vec3{1, 0.5, -1}, mgl32.Vec3{1.1, 1.0, 1})
	for _, x := range []float32{-1.2, 0.6} {
		for _, z := range []float32{-2, 1.4} {
			pos, idx = appendBox(pos, idx, mgl32.Vec3{x, 0, z}, mgl32.Vec3{x + 0.6, 0.6, z + 0.6})
		}
	}
	def := meshparts.SceneDef{Fragments: []meshparts.FragmentDef{{Name: "car", Positions: pos, Indices: idx}}}
	scene, cam, err := def.Build(nil)
	require.NoError(t, err)

	sess, err := meshparts.NewSession(meshparts.DefaultConfig(), nil)
	require.NoError(t, err)
	sess.Load(scene, cam)
	return sess
}

func startServer(t *testing.T, sess *meshparts.Session, origins []string) (*Server, string) {
	t.Helper()
	srv := NewServer(sess, origins, nil)
	srv.SetTickInterval(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Run(ctx)
	}()

	hs := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(func() {
		cancel()
		<-done
		hs.Close()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	env, err := encode(msgType, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// await reads until a message of msgType satisfies ok.
func await[T any](t *testing.T, conn *websocket.Conn, msgType string, ok func(T) bool) T {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type != msgType {
			continue
		}
		var v T
		if len(env.Data) > 0 {
			require.NoError(t, json.Unmarshal(env.Data, &v))
		}
		if ok(v) {
			return v
		}
	}
}

func TestServerDetectAndSelect(t *testing.T) {
	_, url := startServer(t, carSession(t), nil)
	conn := dial(t, url)

	first := await(t, conn, MessageTypeState, func(StateMessage) bool { return true })
	assert.Empty(t, first.Parts)

	send(t, conn, MessageTypeDetect, nil)
	st := await(t, conn, MessageTypeState, func(s StateMessage) bool { return len(s.Parts) > 0 })
	assert.Len(t, st.Parts, 7)

	send(t, conn, MessageTypeSelectPart, SelectPartMessage{Name: "wheel_2"})
	st = await(t, conn, MessageTypeState, func(s StateMessage) bool { return len(s.Selection) > 0 })
	for _, p := range st.Parts {
		if p.Name == "wheel_2" {
			assert.ElementsMatch(t, p.Fragments, st.Selection)
		}
	}

	send(t, conn, MessageTypeKey, meshparts.KeyEvent{Key: meshparts.KeyS})
	st = await(t, conn, MessageTypeState, func(s StateMessage) bool { return s.Readout != nil })
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, st.Readout.Committed)

	send(t, conn, MessageTypeScale, ScaleMessage{Factor: mgl32.Vec3{2, 2, 2}})
	st = await(t, conn, MessageTypeState, func(s StateMessage) bool {
		return s.Readout != nil && s.Readout.Committed.X() > 1.5
	})
	assert.InDelta(t, 2, st.Readout.Committed.Y(), 1e-5)
}

func TestServerErrors(t *testing.T) {
	_, url := startServer(t, carSession(t), nil)
	conn := dial(t, url)

	send(t, conn, "teleport", nil)
	e := await(t, conn, MessageTypeError, func(ErrorMessage) bool { return true })
	assert.Equal(t, "teleport", e.Request)

	send(t, conn, MessageTypeSelectPart, SelectPartMessage{Name: "wheel_0"})
	e = await(t, conn, MessageTypeError, func(ErrorMessage) bool { return true })
	assert.Contains(t, e.Message, "wheel_0")

	send(t, conn, MessageTypePointer, nil)
	e = await(t, conn, MessageTypeError, func(ErrorMessage) bool { return true })
	assert.Contains(t, e.Message, "missing data")

	send(t, conn, MessageTypePing, nil)
	await(t, conn, MessageTypePong, func(struct{}) bool { return true })
}

func TestServerBroadcasts(t *testing.T) {
	_, url := startServer(t, carSession(t), nil)
	a := dial(t, url)
	b := dial(t, url)
	await(t, a, MessageTypeState, func(StateMessage) bool { return true })
	await(t, b, MessageTypeState, func(StateMessage) bool { return true })

	send(t, a, MessageTypeSmartSelect, ToggleMessage{On: true})
	st := await(t, b, MessageTypeState, func(s StateMessage) bool { return s.SmartSelect })
	assert.True(t, st.SmartSelect)
}

func TestServerSubmit(t *testing.T) {
	srv, url := startServer(t, carSession(t), nil)
	conn := dial(t, url)
	await(t, conn, MessageTypeState, func(StateMessage) bool { return true })

	ok := srv.Submit(func(s *meshparts.Session) {
		_, err := s.Detect()
		assert.NoError(t, err)
	})
	require.True(t, ok)
	st := await(t, conn, MessageTypeState, func(s StateMessage) bool { return len(s.Parts) > 0 })
	assert.Len(t, st.Parts, 7)
}

func TestServerRejectsOrigin(t *testing.T) {
	_, url := startServer(t, carSession(t), []string{"https://app.example"})

	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "https://app.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	conn.Close()
}

// onSession runs fn on the session goroutine and waits for it.
func onSession(t *testing.T, srv *Server, fn func(*meshparts.Session)) {
	t.Helper()
	done := make(chan struct{})
	require.True(t, srv.Submit(func(s *meshparts.Session) {
		defer close(done)
		fn(s)
	}))
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("session goroutine did not run the task")
	}
}

func TestServerCameraFollowsHost(t *testing.T) {
	srv, url := startServer(t, carSession(t), nil)
	conn := dial(t, url)
	await(t, conn, MessageTypeState, func(StateMessage) bool { return true })

	send(t, conn, MessageTypeCamera, meshparts.CameraDef{
		Eye:    mgl32.Vec3{0, 0, 12},
		Width:  400,
		Height: 300,
	})
	send(t, conn, MessageTypePing, nil)
	await(t, conn, MessageTypePong, func(struct{}) bool { return true })

	var cam core.Camera
	onSession(t, srv, func(s *meshparts.Session) { cam = s.Camera() })
	assert.Equal(t, 400, cam.Width)
	assert.Equal(t, 300, cam.Height)
	x, y, ok := cam.Project(mgl32.Vec3{})
	require.True(t, ok)
	assert.InDelta(t, 200, x, 1e-3)
	assert.InDelta(t, 150, y, 1e-3)
}

func TestServerFrameUpload(t *testing.T) {
	srv, url := startServer(t, carSession(t), nil)
	conn := dial(t, url)
	await(t, conn, MessageTypeState, func(StateMessage) bool { return true })

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6))))
	send(t, conn, MessageTypeFrame, FrameMessage{PNG: base64.StdEncoding.EncodeToString(buf.Bytes())})
	send(t, conn, MessageTypePing, nil)
	await(t, conn, MessageTypePong, func(struct{}) bool { return true })

	var frame image.Image
	onSession(t, srv, func(s *meshparts.Session) { frame = s.Frame() })
	require.NotNil(t, frame)
	assert.Equal(t, image.Rect(0, 0, 8, 6), frame.Bounds())

	send(t, conn, MessageTypeFrame, FrameMessage{PNG: "not base64!"})
	e := await(t, conn, MessageTypeError, func(ErrorMessage) bool { return true })
	assert.Equal(t, MessageTypeFrame, e.Request)
}

func TestServerCameraControlsDuringBoxDrag(t *testing.T) {
	_, url := startServer(t, carSession(t), nil)
	conn := dial(t, url)
	await(t, conn, MessageTypeState, func(StateMessage) bool { return true })

	shift := meshparts.Modifiers{Shift: true}
	send(t, conn, MessageTypePointer, meshparts.PointerEvent{Kind: meshparts.PointerDown, X: 10, Y: 10, Mods: shift})
	cc := await(t, conn, MessageTypeCameraControls, func(CameraControlsMessage) bool { return true })
	assert.False(t, cc.Attached)

	send(t, conn, MessageTypePointer, meshparts.PointerEvent{Kind: meshparts.PointerUp, X: 60, Y: 60})
	cc = await(t, conn, MessageTypeCameraControls, func(CameraControlsMessage) bool { return true })
	assert.True(t, cc.Attached)
}
