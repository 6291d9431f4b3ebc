package registry

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	socketsKeyPrefix = "presence:sockets:"
	userKeyPrefix    = "presence:user:"
	roleKeyPrefix    = "presence:role:"
)

// addScript registers a socket and reports 1 when the user crossed the
// offline-to-online boundary. One script per transition keeps the boundary
// atomic: two sockets of the same user connecting at once cannot both see the
// empty set.
var addScript = redis.NewScript(`
local added = redis.call("SADD", KEYS[1], ARGV[1])
if added == 1 and redis.call("SCARD", KEYS[1]) == 1 then
	redis.call("HSET", KEYS[2], "role", ARGV[2], "tags", ARGV[3], "connectedAt", ARGV[4])
	redis.call("SADD", KEYS[3], ARGV[5])
	return 1
end
return 0
`)

// removeScript drops a socket and reports 1 when the user's socket set
// emptied. The role is read back from the user hash so the role index entry
// goes away with the last socket.
var removeScript = redis.NewScript(`
if redis.call("SREM", KEYS[1], ARGV[1]) == 0 then
	return 0
end
if redis.call("SCARD", KEYS[1]) > 0 then
	return 0
end
local role = redis.call("HGET", KEYS[2], "role")
redis.call("DEL", KEYS[2])
if role then
	redis.call("SREM", ARGV[2] .. role, ARGV[3])
end
return 1
`)

// RedisStore shares the presence view between processes: sockets attach on
// the ws nodes while the HTTP api reads the same connected set when routing a
// chat. A store error reads as offline, so routing queues the chat instead of
// failing and the redispatch sweep picks it up.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

var _ Store = (*RedisStore)(nil)

func socketsKey(userID string) string { return socketsKeyPrefix + userID }
func userKey(userID string) string    { return userKeyPrefix + userID }
func roleKey(role Role) string        { return roleKeyPrefix + string(role) }

func (s *RedisStore) Add(userID string, role Role, tags []string, socketID string) bool {
	ctx := context.Background()
	tagsJSON, _ := json.Marshal(tags)

	res, err := addScript.Run(ctx, s.client,
		[]string{socketsKey(userID), userKey(userID), roleKey(role)},
		socketID, string(role), string(tagsJSON), s.now().UTC().Format(time.RFC3339), userID,
	).Int()
	if err != nil {
		log.Printf("presence store: add %s: %v", userID, err)
		return false
	}
	return res == 1
}

func (s *RedisStore) Remove(userID, socketID string) bool {
	ctx := context.Background()

	res, err := removeScript.Run(ctx, s.client,
		[]string{socketsKey(userID), userKey(userID)},
		socketID, roleKeyPrefix, userID,
	).Int()
	if err != nil {
		log.Printf("presence store: remove %s: %v", userID, err)
		return false
	}
	return res == 1
}

func (s *RedisStore) IsOnline(userID string) bool {
	n, err := s.client.Exists(context.Background(), socketsKey(userID)).Result()
	if err != nil {
		log.Printf("presence store: exists %s: %v", userID, err)
		return false
	}
	return n > 0
}

func (s *RedisStore) Get(userID string) (Connection, bool) {
	ctx := context.Background()

	sockets, err := s.client.SMembers(ctx, socketsKey(userID)).Result()
	if err != nil {
		log.Printf("presence store: sockets %s: %v", userID, err)
		return Connection{}, false
	}
	if len(sockets) == 0 {
		return Connection{}, false
	}

	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		log.Printf("presence store: fields %s: %v", userID, err)
		return Connection{}, false
	}

	sort.Strings(sockets)
	return connectionFromHash(userID, fields, sockets), true
}

func (s *RedisStore) Find(criteria Criteria) []Connection {
	roles := []Role{RoleVisitor, RoleCommercial}
	if criteria.Role != nil {
		roles = []Role{*criteria.Role}
	}

	ctx := context.Background()
	var out []Connection
	for _, role := range roles {
		userIDs, err := s.client.SMembers(ctx, roleKey(role)).Result()
		if err != nil {
			log.Printf("presence store: members %s: %v", role, err)
			return nil
		}
		for _, userID := range userIDs {
			conn, online := s.Get(userID)
			if !online {
				continue
			}
			out = append(out, conn)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (s *RedisStore) Len() int {
	ctx := context.Background()
	total := 0
	for _, role := range []Role{RoleVisitor, RoleCommercial} {
		n, err := s.client.SCard(ctx, roleKey(role)).Result()
		if err != nil {
			log.Printf("presence store: card %s: %v", role, err)
			return 0
		}
		total += int(n)
	}
	return total
}

// connectionFromHash rebuilds a Connection from the stored user hash. Missing
// or malformed fields degrade to their zero values; the socket list is what
// decides online status.
func connectionFromHash(userID string, fields map[string]string, sockets []string) Connection {
	conn := Connection{
		UserID:    userID,
		Role:      Role(fields["role"]),
		SocketIDs: sockets,
	}
	if raw := fields["tags"]; raw != "" {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil && len(tags) > 0 {
			conn.Tags = tags
		}
	}
	if raw := fields["connectedAt"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			conn.ConnectedAt = ts
		}
	}
	return conn
}
