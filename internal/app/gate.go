package app

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Gate keeps one in-flight request per session key. Starting a new request
// cancels the previous one, and only the latest ticket is current, so a slow
// early response can never overwrite a fresher one.
type Gate struct {
	mu    sync.Mutex
	seq   uint64
	slots *gocache.Cache
}

type Ticket struct {
	key string
	seq uint64
}

type slot struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewGate creates a gate whose idle session slots expire after ttl.
func NewGate(ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Gate{slots: gocache.New(ttl, 2*ttl)}
}

// Begin registers a new request for key and cancels the one it replaces.
// The returned func must be called when the request is finished.
// An empty key is never gated.
func (g *Gate) Begin(parent context.Context, key string) (context.Context, Ticket, func()) {
	ctx, cancel := context.WithCancel(parent)
	if key == "" {
		return ctx, Ticket{}, cancel
	}

	g.mu.Lock()
	g.seq++
	t := Ticket{key: key, seq: g.seq}
	if v, ok := g.slots.Get(key); ok {
		v.(*slot).cancel()
	}
	g.slots.SetDefault(key, &slot{seq: t.seq, cancel: cancel})
	g.mu.Unlock()

	return ctx, t, func() {
		cancel()
		g.mu.Lock()
		defer g.mu.Unlock()
		if v, ok := g.slots.Get(key); ok && v.(*slot).seq == t.seq {
			g.slots.Delete(key)
		}
	}
}

// Current reports whether t is still the latest request for its key.
func (g *Gate) Current(t Ticket) bool {
	if t.key == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.slots.Get(t.key)
	return ok && v.(*slot).seq == t.seq
}

// sessionKey scopes a session to one kind of request. Anonymous callers get
// the empty key and are never gated against each other.
func sessionKey(kind, session string) string {
	if session == "" {
		return ""
	}
	return kind + ":" + session
}
