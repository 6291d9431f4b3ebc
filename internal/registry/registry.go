package registry

import (
	"sort"
	"sync"
	"time"
)

type Role string

const (
	RoleVisitor    Role = "VISITOR"
	RoleCommercial Role = "COMMERCIAL"
)

// Connection is the presence record for one user. It exists iff the user has
// at least one live socket; multiple sockets (tabs, devices) share the one
// record. Values handed out by the registry are copies.
type Connection struct {
	UserID      string    `json:"userId"`
	Role        Role      `json:"role"`
	Tags        []string  `json:"tags,omitempty"`
	SocketIDs   []string  `json:"socketIds"`
	ConnectedAt time.Time `json:"connectedAt"`
}

func (c Connection) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type Criteria struct {
	Role *Role
}

// Store is the presence view the scheduler, the dispatcher and the presence
// state machine work against. Registry keeps it in process; RedisStore backs
// it with Redis so the api and ws processes see one view.
type Store interface {
	Add(userID string, role Role, tags []string, socketID string) (cameOnline bool)
	Remove(userID, socketID string) (wentOffline bool)
	IsOnline(userID string) bool
	Get(userID string) (Connection, bool)
	Find(criteria Criteria) []Connection
	Len() int
}

var _ Store = (*Registry)(nil)

type connection struct {
	userID      string
	role        Role
	tags        []string
	sockets     map[string]struct{}
	connectedAt time.Time
}

// Registry is the process-local presence store. One mutex guards the map;
// operations on the same user therefore serialize, which is the only
// ordering the presence state machine needs.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	now   func() time.Time
}

func New() *Registry {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		conns: make(map[string]*connection),
		now:   now,
	}
}

// Add registers a socket for the user and reports whether the user crossed
// the offline-to-online boundary. Adding a socket id that is already present
// is a no-op.
func (r *Registry) Add(userID string, role Role, tags []string, socketID string) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[userID]
	if !ok {
		conn = &connection{
			userID:      userID,
			role:        role,
			tags:        append([]string(nil), tags...),
			sockets:     make(map[string]struct{}),
			connectedAt: r.now().UTC(),
		}
		r.conns[userID] = conn
		conn.sockets[socketID] = struct{}{}
		return true
	}

	conn.sockets[socketID] = struct{}{}
	return false
}

// Remove drops a socket and reports whether the user went offline. The
// Connection is deleted entirely once its socket set empties; a user losing
// one of two sockets stays online and no transition is reported.
func (r *Registry) Remove(userID, socketID string) (wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[userID]
	if !ok {
		return false
	}

	delete(conn.sockets, socketID)
	if len(conn.sockets) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

func (r *Registry) Get(userID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	if !ok {
		return Connection{}, false
	}
	return conn.snapshot(), true
}

// Find returns copies of every Connection matching the criteria, sorted by
// user id so callers get a stable order.
func (r *Registry) Find(criteria Criteria) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if criteria.Role != nil && conn.role != *criteria.Role {
			continue
		}
		out = append(out, conn.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (c *connection) snapshot() Connection {
	sockets := make([]string, 0, len(c.sockets))
	for id := range c.sockets {
		sockets = append(sockets, id)
	}
	sort.Strings(sockets)
	return Connection{
		UserID:      c.userID,
		Role:        c.role,
		Tags:        append([]string(nil), c.tags...),
		SocketIDs:   sockets,
		ConnectedAt: c.connectedAt,
	}
}
