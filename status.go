package meshparts

import (
	"fmt"
	"time"
)

type StatusLevel string

const (
	StatusInfo  StatusLevel = "info"
	StatusWarn  StatusLevel = "warn"
	StatusError StatusLevel = "error"
)

// StatusMessage is a transient, user-facing notice.
type StatusMessage struct {
	Level   StatusLevel `json:"level"`
	Text    string      `json:"text"`
	Time    time.Time   `json:"time"`
	Expires time.Time   `json:"expires"`
}

// StatusRing keeps the most recent status messages, oldest first.
type StatusRing struct {
	msgs []StatusMessage
	next int
	full bool
	ttl  time.Duration
	now  func() time.Time
}

func NewStatusRing(size int, ttl time.Duration) *StatusRing {
	if size <= 0 {
		size = 16
	}
	return &StatusRing{
		msgs: make([]StatusMessage, size),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (r *StatusRing) Post(level StatusLevel, format string, args ...any) StatusMessage {
	t := r.now()
	m := StatusMessage{Level: level, Text: fmt.Sprintf(format, args...), Time: t}
	if r.ttl > 0 {
		m.Expires = t.Add(r.ttl)
	}
	r.msgs[r.next] = m
	r.next = (r.next + 1) % len(r.msgs)
	if r.next == 0 {
		r.full = true
	}
	return m
}

// All returns every retained message.
func (r *StatusRing) All() []StatusMessage {
	if !r.full {
		return append([]StatusMessage(nil), r.msgs[:r.next]...)
	}
	out := make([]StatusMessage, 0, len(r.msgs))
	out = append(out, r.msgs[r.next:]...)
	return append(out, r.msgs[:r.next]...)
}

// Active returns the messages that have not expired yet.
func (r *StatusRing) Active() []StatusMessage {
	t := r.now()
	var out []StatusMessage
	for _, m := range r.All() {
		if m.Expires.IsZero() || t.Before(m.Expires) {
			out = append(out, m)
		}
	}
	return out
}

func (r *StatusRing) Latest() (StatusMessage, bool) {
	all := r.All()
	if len(all) == 0 {
		return StatusMessage{}, false
	}
	return all[len(all)-1], true
}
