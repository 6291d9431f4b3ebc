package assignment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/registry"
)

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}

type fakeChatCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeChatCounter() *fakeChatCounter {
	return &fakeChatCounter{counts: make(map[string]int)}
}

func (f *fakeChatCounter) CountActiveChats(ctx context.Context, tenantID, commercialID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[commercialID], nil
}

func (f *fakeChatCounter) add(commercialID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[commercialID]++
}

type schedulerFixture struct {
	repo      *memoryRuleRepository
	registry  *registry.Registry
	counter   *fakeChatCounter
	scheduler *Scheduler
}

func newSchedulerFixture(queueCfg QueueConfig) *schedulerFixture {
	repo := newMemoryRuleRepository()
	reg := registry.New()
	counter := newFakeChatCounter()
	scheduler := NewScheduler(
		NewResolver(repo),
		reg,
		counter,
		NewMemoryCursorStore(),
		NewQueuePolicy(queueCfg),
	)
	scheduler.SetClock(func() time.Time {
		return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) // a Monday
	})
	return &schedulerFixture{
		repo:      repo,
		registry:  reg,
		counter:   counter,
		scheduler: scheduler,
	}
}

func (f *schedulerFixture) connectCommercials(ids ...string) {
	for _, id := range ids {
		f.registry.Add(id, registry.RoleCommercial, nil, "sock-"+id)
	}
}

func TestRoundRobinRotatesFairly(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1", "c2", "c3")

	selected := make(map[string]int)
	var lastRound []string
	for i := 0; i < 6; i++ {
		decision, err := f.scheduler.Assign(context.Background(), Request{
			ChatID:   "chat",
			TenantID: "t1",
		})
		if err != nil {
			t.Fatalf("Assign error: %v", err)
		}
		if decision.Outcome != OutcomeAssigned || len(decision.CommercialIDs) != 1 {
			t.Fatalf("unexpected decision: %+v", decision)
		}
		id := decision.CommercialIDs[0]
		selected[id]++

		// No commercial may repeat before every other one has had a turn.
		for _, prev := range lastRound {
			if prev == id {
				t.Fatalf("%s selected twice within one rotation", id)
			}
		}
		lastRound = append(lastRound, id)
		if len(lastRound) == 3 {
			lastRound = nil
		}
	}

	for _, id := range []string{"c1", "c2", "c3"} {
		if selected[id] != 2 {
			t.Fatalf("expected %s to be selected twice, got %d", id, selected[id])
		}
	}
}

// 3 commercials, ROUND_ROBIN, cap 2, 4 chats land as C1, C2, C3, C1. C1 then
// sits at the cap so a 5th chat skips it.
func TestRoundRobinWithCapScenario(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1", "c2", "c3")

	rule := activeRule("t1", "", model.StrategyRoundRobin)
	rule.MaxChatsPerCommercial = 2
	f.repo.rules["t1"] = rule

	want := []string{"c1", "c2", "c3", "c1"}
	for i, expected := range want {
		decision, err := f.scheduler.Assign(context.Background(), Request{
			ChatID:   "chat",
			TenantID: "t1",
		})
		if err != nil {
			t.Fatalf("Assign %d error: %v", i, err)
		}
		got := decision.CommercialIDs[0]
		if got != expected {
			t.Fatalf("assignment %d: expected %s, got %s", i, expected, got)
		}
		f.counter.add(got)
	}

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-5",
		TenantID: "t1",
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if decision.CommercialIDs[0] == "c1" {
		t.Fatalf("c1 is at the cap and must not receive a 5th chat")
	}
}

// With everyone at the cap the eligible set is empty and the fallback
// strategy runs over the whole connected set; the caller sees which strategy
// produced the assignment and can escalate.
func TestEveryCommercialAtCapFallsBack(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1", "c2")
	f.counter.counts["c1"] = 2
	f.counter.counts["c2"] = 2

	rule := activeRule("t1", "", model.StrategyRoundRobin)
	rule.MaxChatsPerCommercial = 2
	rule.FallbackStrategy = model.StrategyRandom
	f.repo.rules["t1"] = rule

	f.scheduler.SetRand(func(n int) int { return 0 })

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if decision.Outcome != OutcomeAssigned {
		t.Fatalf("expected fallback assignment, got %s", decision.Outcome)
	}
	if decision.Strategy != model.StrategyRandom {
		t.Fatalf("expected the fallback strategy to be reported, got %s", decision.Strategy)
	}
	if len(decision.CommercialIDs) != 1 || decision.CommercialIDs[0] != "c1" {
		t.Fatalf("expected c1 from the seeded picker, got %v", decision.CommercialIDs)
	}
}

func TestQueueModeDefersNonUrgentChats(t *testing.T) {
	cfg := DefaultQueueConfig()
	cfg.QueueModeEnabled = true
	f := newSchedulerFixture(cfg)
	f.connectCommercials("c1")

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
		Priority: model.ChatPriorityNormal,
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if decision.Outcome != OutcomeDeferred {
		t.Fatalf("expected deferred, got %s", decision.Outcome)
	}
	if len(decision.CommercialIDs) != 0 {
		t.Fatalf("deferred decision must carry no commercials")
	}

	urgent, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-2",
		TenantID: "t1",
		Priority: model.ChatPriorityUrgent,
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if urgent.Outcome != OutcomeAssigned {
		t.Fatalf("urgent chat must bypass the queue, got %s", urgent.Outcome)
	}
}

func TestNoConnectedCommercialsIsUnassignedNotError(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
	})
	if err != nil {
		t.Fatalf("no eligible commercial is a business outcome, not an error: %v", err)
	}
	if decision.Outcome != OutcomeUnassigned {
		t.Fatalf("expected unassigned, got %s", decision.Outcome)
	}
}

func TestWorkingHoursExclusionFallsThroughToFallback(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1", "c2")

	rule := activeRule("t1", "", model.StrategyWorkloadBalanced)
	rule.FallbackStrategy = model.StrategyRoundRobin
	rule.WorkingHours = &model.WorkingHoursItem{
		Timezone: "UTC",
		Schedule: []model.WorkingWindowItem{
			// Scheduler clock is Monday 10:00 UTC; only Tuesday is open.
			{DayOfWeek: int(time.Tuesday), Start: "09:00", End: "17:00"},
		},
	}
	f.repo.rules["t1"] = rule

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if decision.Outcome != OutcomeAssigned {
		t.Fatalf("fallback should still assign, got %s", decision.Outcome)
	}
	if decision.Strategy != model.StrategyRoundRobin {
		t.Fatalf("expected the fallback strategy, got %s", decision.Strategy)
	}
}

func TestSkillBasedPicksHighestScore(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.registry.Add("c1", registry.RoleCommercial, []string{"billing"}, "s1")
	f.registry.Add("c2", registry.RoleCommercial, []string{"sales", "billing"}, "s2")
	f.registry.Add("c3", registry.RoleCommercial, nil, "s3")

	rule := activeRule("t1", "", model.StrategySkillBased)
	rule.Priorities = map[string]int{"sales": 5, "billing": 2}
	f.repo.rules["t1"] = rule

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
		Tags:     []string{"sales", "billing"},
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if len(decision.CommercialIDs) != 1 || decision.CommercialIDs[0] != "c2" {
		t.Fatalf("expected c2 (score 7), got %v", decision.CommercialIDs)
	}
}

func TestSkillBasedTieBreaksViaCursor(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.registry.Add("c1", registry.RoleCommercial, []string{"sales"}, "s1")
	f.registry.Add("c2", registry.RoleCommercial, []string{"sales"}, "s2")

	rule := activeRule("t1", "", model.StrategySkillBased)
	rule.Priorities = map[string]int{"sales": 3}
	f.repo.rules["t1"] = rule

	req := Request{ChatID: "chat", TenantID: "t1", Tags: []string{"sales"}}

	first, err := f.scheduler.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	second, err := f.scheduler.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if first.CommercialIDs[0] == second.CommercialIDs[0] {
		t.Fatalf("cursor tie-break should rotate between tied candidates")
	}
}

func TestSkillBasedBroadcastWhenNoTagsMatch(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.registry.Add("c1", registry.RoleCommercial, []string{"sales"}, "s1")
	f.registry.Add("c2", registry.RoleCommercial, []string{"billing"}, "s2")

	rule := activeRule("t1", "", model.StrategySkillBased)
	f.repo.rules["t1"] = rule

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
		Tags:     []string{"legal"},
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if !decision.Broadcast {
		t.Fatalf("no distinguishable winner should broadcast")
	}
	if len(decision.CommercialIDs) != 2 {
		t.Fatalf("broadcast should include every candidate, got %v", decision.CommercialIDs)
	}
}

func TestSkillBasedMandatoryWithNoMatchIsUnassigned(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.registry.Add("c1", registry.RoleCommercial, []string{"sales"}, "s1")

	rule := activeRule("t1", "", model.StrategySkillBased)
	rule.EnableSkillBasedRouting = true
	f.repo.rules["t1"] = rule

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
		Tags:     []string{"legal"},
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if decision.Outcome != OutcomeUnassigned {
		t.Fatalf("mandatory skill routing without matches must stay unassigned, got %s", decision.Outcome)
	}
}

func TestWorkloadBalancedPicksLeastLoaded(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1", "c2", "c3")
	f.counter.counts["c1"] = 4
	f.counter.counts["c2"] = 1
	f.counter.counts["c3"] = 2

	f.repo.rules["t1"] = activeRule("t1", "", model.StrategyWorkloadBalanced)

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if decision.CommercialIDs[0] != "c2" {
		t.Fatalf("expected the least-loaded commercial c2, got %s", decision.CommercialIDs[0])
	}
}

func TestRandomUsesInjectedPicker(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1", "c2", "c3")
	f.scheduler.SetRand(func(n int) int { return n - 1 })

	f.repo.rules["t1"] = activeRule("t1", "", model.StrategyRandom)

	decision, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
	})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if decision.CommercialIDs[0] != "c3" {
		t.Fatalf("expected c3 from the injected picker, got %s", decision.CommercialIDs[0])
	}
}

func TestMalformedStoredRuleFailsTheDecision(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1")

	rule := activeRule("t1", "", model.StrategyRoundRobin)
	rule.WorkingHours = &model.WorkingHoursItem{Timezone: "Nowhere/Invalid"}
	f.repo.rules["t1"] = rule

	_, err := f.scheduler.Assign(context.Background(), Request{
		ChatID:   "chat-1",
		TenantID: "t1",
	})
	if err == nil {
		t.Fatalf("expected the decision to fail on the malformed rule")
	}
	var typed *Error
	if !asError(err, &typed) || typed.Code != ErrorCodeValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

// A decision stays locked until its commit has written the assignment, so a
// concurrent decision at the same scope reads the committed load. With c1 at
// a cap of one after the first commit, the second decision must route around
// it via the fallback strategy instead of double-booking the last slot.
func TestAssignAndCommitHoldsScopeLockThroughCommit(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1")

	rule := activeRule("t1", "", model.StrategyRoundRobin)
	rule.MaxChatsPerCommercial = 1
	rule.FallbackStrategy = model.StrategyRandom
	f.repo.rules["t1"] = rule
	f.scheduler.SetRand(func(n int) int { return 0 })

	firstCommitted := make(chan struct{})
	release := make(chan struct{})

	var first Decision
	done := make(chan error, 1)
	go func() {
		var err error
		first, err = f.scheduler.AssignAndCommit(context.Background(), Request{
			ChatID:   "chat-1",
			TenantID: "t1",
		}, func(d Decision) error {
			f.counter.add(d.CommercialIDs[0])
			close(firstCommitted)
			<-release
			return nil
		})
		done <- err
	}()

	<-firstCommitted

	secondDone := make(chan Decision, 1)
	go func() {
		second, err := f.scheduler.Assign(context.Background(), Request{
			ChatID:   "chat-2",
			TenantID: "t1",
		})
		if err != nil {
			t.Errorf("Assign error: %v", err)
		}
		secondDone <- second
	}()

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("AssignAndCommit error: %v", err)
	}
	second := <-secondDone

	if first.Strategy != model.StrategyRoundRobin {
		t.Fatalf("expected the first chat via the primary strategy, got %s", first.Strategy)
	}
	if second.Strategy != model.StrategyRandom {
		t.Fatalf("expected the second chat to see c1 at the cap and fall back, got %s", second.Strategy)
	}
}

// Concurrent decisions at the same scope must each consume a distinct cursor
// value, so the rotation stays fair even under parallel new-chat events.
func TestConcurrentRoundRobinStaysFair(t *testing.T) {
	f := newSchedulerFixture(DefaultQueueConfig())
	f.connectCommercials("c1", "c2", "c3")

	var wg sync.WaitGroup
	results := make(chan string, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := f.scheduler.Assign(context.Background(), Request{
				ChatID:   "chat",
				TenantID: "t1",
			})
			if err != nil {
				t.Errorf("Assign error: %v", err)
				return
			}
			results <- decision.CommercialIDs[0]
		}()
	}
	wg.Wait()
	close(results)

	counts := make(map[string]int)
	for id := range results {
		counts[id]++
	}
	for _, id := range []string{"c1", "c2", "c3"} {
		if counts[id] != 2 {
			t.Fatalf("expected %s selected twice, got %d (%v)", id, counts[id], counts)
		}
	}
}
