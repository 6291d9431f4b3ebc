package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func testClock() func() time.Time {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestAddFirstSocketComesOnline(t *testing.T) {
	r := NewWithClock(testClock())

	if !r.Add("user-1", RoleCommercial, nil, "sock-1") {
		t.Fatalf("first socket should report the online transition")
	}
	if r.Add("user-1", RoleCommercial, nil, "sock-2") {
		t.Fatalf("second socket must not report a transition")
	}
	if !r.IsOnline("user-1") {
		t.Fatalf("user should be online")
	}

	conn, ok := r.Get("user-1")
	if !ok {
		t.Fatalf("expected connection")
	}
	if len(conn.SocketIDs) != 2 {
		t.Fatalf("expected 2 sockets, got %d", len(conn.SocketIDs))
	}
}

func TestAddSameSocketTwiceIsIdempotent(t *testing.T) {
	r := NewWithClock(testClock())

	r.Add("user-1", RoleVisitor, nil, "sock-1")
	if r.Add("user-1", RoleVisitor, nil, "sock-1") {
		t.Fatalf("re-adding the same socket must not report a transition")
	}

	conn, _ := r.Get("user-1")
	if len(conn.SocketIDs) != 1 {
		t.Fatalf("expected 1 socket, got %d", len(conn.SocketIDs))
	}
}

func TestRemoveReportsOfflineOnlyOnLastSocket(t *testing.T) {
	r := NewWithClock(testClock())
	r.Add("user-1", RoleCommercial, nil, "sock-1")
	r.Add("user-1", RoleCommercial, nil, "sock-2")

	if r.Remove("user-1", "sock-1") {
		t.Fatalf("removing one of two sockets must not report offline")
	}
	if !r.IsOnline("user-1") {
		t.Fatalf("user should stay online with a remaining socket")
	}
	if !r.Remove("user-1", "sock-2") {
		t.Fatalf("removing the last socket should report offline")
	}
	if r.IsOnline("user-1") {
		t.Fatalf("user should be offline")
	}
	if _, ok := r.Get("user-1"); ok {
		t.Fatalf("connection must be deleted once its socket set is empty")
	}
}

func TestRemoveUnknownUserIsNoop(t *testing.T) {
	r := NewWithClock(testClock())
	if r.Remove("missing", "sock-1") {
		t.Fatalf("removing a socket of an unknown user must not report offline")
	}
}

func TestFindByRole(t *testing.T) {
	r := NewWithClock(testClock())
	r.Add("c2", RoleCommercial, []string{"sales"}, "s2")
	r.Add("c1", RoleCommercial, nil, "s1")
	r.Add("v1", RoleVisitor, nil, "s3")

	role := RoleCommercial
	commercials := r.Find(Criteria{Role: &role})
	if len(commercials) != 2 {
		t.Fatalf("expected 2 commercials, got %d", len(commercials))
	}
	if commercials[0].UserID != "c1" || commercials[1].UserID != "c2" {
		t.Fatalf("expected stable user-id order, got %s, %s", commercials[0].UserID, commercials[1].UserID)
	}
	if !commercials[1].HasTag("sales") {
		t.Fatalf("tags should survive the snapshot copy")
	}

	all := r.Find(Criteria{})
	if len(all) != 3 {
		t.Fatalf("expected 3 connections, got %d", len(all))
	}
}

// A connection must exist iff its socket set is non-empty, for any
// interleaving of add/remove across goroutines.
func TestConcurrentAddRemoveLeavesNoGhosts(t *testing.T) {
	r := NewWithClock(testClock())

	const users = 8
	const socketsPerUser = 20

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		for s := 0; s < socketsPerUser; s++ {
			wg.Add(1)
			go func(socketID string) {
				defer wg.Done()
				r.Add(userID, RoleCommercial, nil, socketID)
				r.Remove(userID, socketID)
			}(fmt.Sprintf("sock-%d", s))
		}
	}
	wg.Wait()

	if got := r.Len(); got != 0 {
		t.Fatalf("expected empty registry after balanced add/remove, got %d entries", got)
	}
}
