package session

import (
	"context"
	"sync"
	"time"

	"tasknerd/internal/logging"
)

// Options configures a Tracker.
type Options struct {
	TTL      time.Duration // idle expiry; zero disables Sweep
	Now      func() time.Time
	Recorder TurnRecorder // optional
}

// Tracker owns every session's Context. Exactly one Context exists per
// session id; it is created on first use and destroyed on Expire.
type Tracker struct {
	mu       sync.Mutex
	contexts map[string]*Context
	locks    *keyLocks
	ttl      time.Duration
	now      func() time.Time
	recorder TurnRecorder
}

// NewTracker creates an empty tracker.
func NewTracker(opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		contexts: make(map[string]*Context),
		locks:    newKeyLocks(),
		ttl:      opts.TTL,
		now:      opts.Now,
		recorder: opts.Recorder,
	}
}

// getOrCreate must be called with t.mu held.
func (t *Tracker) getOrCreate(id string) *Context {
	c, ok := t.contexts[id]
	if !ok {
		now := t.now()
		c = &Context{ID: id, CreatedAt: now, LastSeen: now}
		t.contexts[id] = c
		logging.SessionDebug("session %s: context created", id)
	}
	return c
}

// Get returns a snapshot of the session's context, creating it if needed.
func (t *Tracker) Get(id string) *Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getOrCreate(id).Clone()
}

// Update applies m to the session's context outside of a turn.
func (t *Tracker) Update(id string, m Mutation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.getOrCreate(id)
	if m != nil {
		m(c)
	}
	c.LastSeen = t.now()
}

// Expire destroys the session's context. A turn in flight for the
// session finishes but its commit is dropped.
func (t *Tracker) Expire(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.contexts[id]; ok {
		delete(t.contexts, id)
		logging.Session("session %s: expired", id)
	}
}

// Len returns the number of live sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.contexts)
}

// Recorder returns the configured turn recorder, or nil.
func (t *Tracker) Recorder() TurnRecorder { return t.recorder }

// Begin acquires the session's turn lock and returns the turn holding a
// snapshot of the context. It blocks while another turn of the same
// session is running and returns ctx.Err() if ctx ends first.
func (t *Tracker) Begin(ctx context.Context, id string) (*Turn, error) {
	if err := t.locks.Lock(ctx, id); err != nil {
		return nil, err
	}

	t.mu.Lock()
	live := t.getOrCreate(id)
	live.LastSeen = t.now()
	snap := live.Clone()
	t.mu.Unlock()

	return &Turn{tracker: t, id: id, live: live, snapshot: snap}, nil
}

// Sweep expires contexts idle for longer than the TTL and returns how
// many were removed.
func (t *Tracker) Sweep(now time.Time) int {
	if t.ttl <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, c := range t.contexts {
		if now.Sub(c.LastSeen) > t.ttl {
			delete(t.contexts, id)
			n++
		}
	}
	if n > 0 {
		logging.Session("swept %d idle sessions (ttl=%v)", n, t.ttl)
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (t *Tracker) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Sweep(t.now())
		}
	}
}

// Turn is one serialized interpreter turn of a session.
type Turn struct {
	tracker  *Tracker
	id       string
	live     *Context
	snapshot *Context
	once     sync.Once
}

// SessionID returns the session the turn belongs to.
func (tu *Turn) SessionID() string { return tu.id }

// Context returns the snapshot taken at Begin. Callers may read it freely;
// changes to it are not persisted.
func (tu *Turn) Context() *Context { return tu.snapshot }

// Commit applies m to the live context and releases the turn lock.
// Calling Commit or Release again is a no-op.
func (tu *Turn) Commit(m Mutation) {
	tu.once.Do(func() {
		t := tu.tracker
		t.mu.Lock()
		if cur, ok := t.contexts[tu.id]; ok && cur == tu.live {
			if m != nil {
				m(cur)
			}
			cur.Turns++
			cur.LastSeen = t.now()
		} else {
			logging.SessionDebug("session %s: expired during turn, dropping mutation", tu.id)
		}
		t.mu.Unlock()
		t.locks.Unlock(tu.id)
	})
}

// Release releases the turn lock without mutating the context.
func (tu *Turn) Release() {
	tu.once.Do(func() {
		tu.tracker.locks.Unlock(tu.id)
	})
}
