// Package presence tracks which users currently hold a live connection.
// The registry is the single source of truth for "who is online now":
// one slot per user id, last connection wins, nothing persisted.
package presence

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"messenger-backend/internal/models"
)

// Session is a live connection handle the registry can push to. Send
// must not block; it reports false when the event was dropped (closed
// session or full buffer).
type Session interface {
	Send(v any) bool
}

const shardCount = 32

type member struct {
	sess Session

	// mu serializes snapshot delivery to this session so a stale
	// online-set can never be queued after a newer one.
	mu   sync.Mutex
	seen uint64 // highest snapshot version delivered
}

func (m *member) deliver(version uint64, evt models.WSEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version <= m.seen {
		return
	}
	m.seen = version
	m.sess.Send(evt)
}

type shard struct {
	mu      sync.RWMutex
	members map[string]*member
}

// Registry maps user ids to their active session. Keys are spread over
// fixed shards so register/unregister for different users never contend
// on one lock.
type Registry struct {
	shards [shardCount]*shard

	// broadcastMu orders version assignment with the snapshot read, so a
	// higher version never carries an older view of the registry.
	broadcastMu sync.Mutex
	version     atomic.Uint64
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{members: make(map[string]*member)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Register inserts or replaces the session for userID. A new connection
// silently supersedes the old handle; closing the old one is the
// transport's concern. Every registration broadcasts the online-set.
func (r *Registry) Register(userID string, s Session) {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	sh.members[userID] = &member{sess: s}
	sh.mu.Unlock()

	r.broadcastOnline()
}

// Unregister removes the mapping for userID, but only while s is still
// the registered session: the deferred disconnect of a superseded
// connection must not evict its replacement. Unknown ids are a no-op.
func (r *Registry) Unregister(userID string, s Session) {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	m, ok := sh.members[userID]
	if ok && m.sess == s {
		delete(sh.members, userID)
	} else {
		ok = false
	}
	sh.mu.Unlock()

	if ok {
		r.broadcastOnline()
	}
}

// Lookup returns the session for userID. Absence means offline, not an
// error.
func (r *Registry) Lookup(userID string) (Session, bool) {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	m, ok := sh.members[userID]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.sess, true
}

// Online reports whether userID currently holds a session.
func (r *Registry) Online(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Snapshot returns every currently registered user id.
func (r *Registry) Snapshot() []string {
	var ids []string
	for _, sh := range r.shards {
		sh.mu.RLock()
		for id := range sh.members {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	return ids
}

// broadcastOnline pushes the current online-set to every registered
// session. Delivery is fire-and-forget per session; each session sees
// monotonically non-decreasing snapshot versions even when broadcasts
// race.
func (r *Registry) broadcastOnline() {
	r.broadcastMu.Lock()
	version := r.version.Add(1)
	evt := models.WSEvent{
		Event:       "online-users",
		OnlineUsers: r.Snapshot(),
		Seq:         version,
	}
	r.broadcastMu.Unlock()

	var targets []*member
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, m := range sh.members {
			targets = append(targets, m)
		}
		sh.mu.RUnlock()
	}
	for _, m := range targets {
		m.deliver(version, evt)
	}
}
