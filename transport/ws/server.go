// Package ws bridges a host UI to a Session over websockets. Every socket
// feeds one queue drained by the goroutine running Server.Run, so the
// session is only ever touched from that goroutine.
package ws

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	meshparts "github.com/gekko3d/meshparts"
	"github.com/gekko3d/meshparts/meshrt/core"
)

const DefaultTickInterval = 16 * time.Millisecond

// MessageHandler runs on the session goroutine.
type MessageHandler func(s *meshparts.Session, env Envelope) error

type inbound struct {
	from *SafeWriter
	env  Envelope
}

type Server struct {
	upgrader websocket.Upgrader
	session  *meshparts.Session
	log      core.Logger
	handlers map[string]MessageHandler
	tick     time.Duration

	queue   chan inbound
	tasks   chan func(*meshparts.Session)
	stopped chan struct{}

	clients   map[*SafeWriter]bool
	clientsMu sync.Mutex

	dirty bool
}

// NewServer wraps session. With no allowed origins every origin is accepted.
func NewServer(session *meshparts.Session, origins []string, log core.Logger) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return slices.Contains(origins, r.Header.Get("Origin"))
			},
		},
		session:  session,
		log:      core.OrNop(log),
		handlers: make(map[string]MessageHandler),
		tick:     DefaultTickInterval,
		queue:    make(chan inbound, 256),
		tasks:    make(chan func(*meshparts.Session), 16),
		stopped:  make(chan struct{}),
		clients:  make(map[*SafeWriter]bool),
	}
	s.registerDefaults()
	return s
}

func (s *Server) RegisterHandler(messageType string, handler MessageHandler) {
	s.handlers[messageType] = handler
}

func (s *Server) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Submit queues fn to run on the session goroutine, for work that does not
// come from a socket such as config reloads. It reports false once Run has
// returned.
func (s *Server) Submit(fn func(*meshparts.Session)) bool {
	select {
	case s.tasks <- fn:
		return true
	case <-s.stopped:
		return false
	}
}

// HandleWS upgrades the request and pumps its messages into the queue.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade: %v", err)
		return
	}
	client := NewSafeWriter(conn)
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client)
		s.clientsMu.Unlock()
		client.Close()
	}()
	s.log.Infof("websocket client connected from %s", conn.RemoteAddr())

	// the new client gets a snapshot from the session goroutine
	s.Submit(func(sess *meshparts.Session) {
		s.send(client, MessageTypeState, snapshot(sess))
	})

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnf("websocket read: %v", err)
			}
			return
		}
		select {
		case s.queue <- inbound{from: client, env: env}:
		case <-s.stopped:
			return
		}
	}
}

// Run owns the session until ctx is done. It handles queued messages, ticks
// the session each frame and broadcasts a state snapshot after changes.
func (s *Server) Run(ctx context.Context) error {
	s.session.OnChange(func() { s.dirty = true })
	s.session.SetCameraControls(hostControls{s})
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	defer close(s.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-s.queue:
			s.handle(in)
		case fn := <-s.tasks:
			fn(s.session)
		case <-ticker.C:
			if err := s.session.Update(); err != nil {
				s.dirty = true
			}
		}
		if s.dirty {
			s.dirty = false
			s.broadcast(MessageTypeState, snapshot(s.session))
		}
	}
}

// hostControls forwards camera control changes to every client. It runs on
// the session goroutine.
type hostControls struct{ s *Server }

func (h hostControls) Detach() {
	h.s.broadcast(MessageTypeCameraControls, CameraControlsMessage{Attached: false})
}

func (h hostControls) Attach() {
	h.s.broadcast(MessageTypeCameraControls, CameraControlsMessage{Attached: true})
}

func (s *Server) handle(in inbound) {
	h, ok := s.handlers[in.env.Type]
	if !ok {
		s.send(in.from, MessageTypeError, ErrorMessage{Request: in.env.Type, Message: "unknown message type"})
		return
	}
	if err := h(s.session, in.env); err != nil {
		s.log.Debugf("%s: %v", in.env.Type, err)
		s.send(in.from, MessageTypeError, ErrorMessage{Request: in.env.Type, Message: err.Error()})
	}
	if in.env.Type == MessageTypePing {
		s.send(in.from, MessageTypePong, nil)
	}
}

func (s *Server) send(to *SafeWriter, msgType string, v any) {
	env, err := encode(msgType, v)
	if err != nil {
		s.log.Errorf("websocket: %v", err)
		return
	}
	if err := to.WriteJSON(env); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.log.Debugf("websocket write: %v", err)
	}
}

func (s *Server) broadcast(msgType string, v any) {
	s.clientsMu.Lock()
	clients := make([]*SafeWriter, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()
	for _, c := range clients {
		s.send(c, msgType, v)
	}
}
