package assignment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/registry"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ChatCounter supplies the active-chat load of a commercial. Implemented by
// the chat aggregate.
type ChatCounter interface {
	CountActiveChats(ctx context.Context, tenantID, commercialID string) (int, error)
}

type Outcome string

const (
	OutcomeAssigned   Outcome = "assigned"
	OutcomeDeferred   Outcome = "deferred"
	OutcomeUnassigned Outcome = "unassigned"
)

type Request struct {
	ChatID   string
	TenantID string
	SiteID   string
	Priority model.ChatPriority
	Tags     []string
}

// Decision is the scheduler's output. "No eligible commercial" is a normal
// business outcome carried as OutcomeUnassigned, never an error.
type Decision struct {
	Outcome       Outcome
	CommercialIDs []string
	Strategy      model.Strategy
	ScopeKey      string
	// Broadcast marks a first-responder-wins decision: no strategy winner
	// was distinguishable, so every listed commercial becomes a participant
	// eligible to act until one responds.
	Broadcast bool
}

// Scheduler executes a routing strategy against the connected commercials
// and produces the assignment decision for a new or queued chat.
type Scheduler struct {
	resolver *Resolver
	registry registry.Store
	chats    ChatCounter
	cursors  CursorStore
	queue    *QueuePolicy
	now      func() time.Time
	randIntn func(int) int

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

func NewScheduler(resolver *Resolver, reg registry.Store, chats ChatCounter, cursors CursorStore, queue *QueuePolicy) *Scheduler {
	return &Scheduler{
		resolver:   resolver,
		registry:   reg,
		chats:      chats,
		cursors:    cursors,
		queue:      queue,
		now:        time.Now,
		randIntn:   rand.Intn,
		scopeLocks: make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the scheduler's time source. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetRand overrides the RANDOM strategy's picker. Test hook.
func (s *Scheduler) SetRand(randIntn func(int) int) {
	if randIntn != nil {
		s.randIntn = randIntn
	}
}

// Assign runs the full routing pipeline for one chat. Decisions for the same
// rule scope serialize on a per-scope lock so two concurrent chats cannot
// both pick the same least-loaded commercial past its cap.
func (s *Scheduler) Assign(ctx context.Context, req Request) (Decision, error) {
	return s.AssignAndCommit(ctx, req, nil)
}

// AssignAndCommit runs the pipeline and, still holding the scope lock, hands
// the decision to commit for persistence. The active-chat counts the filter
// read stay valid until commit has written its assignment, so two concurrent
// chats at the same scope cannot both claim a commercial's last free slot.
// A commit error discards the decision and is returned unwrapped.
func (s *Scheduler) AssignAndCommit(ctx context.Context, req Request, commit func(Decision) error) (Decision, error) {
	if req.ChatID == "" {
		return Decision{}, newError(ErrorCodeValidation, "chatId is required", nil)
	}
	if req.TenantID == "" {
		return Decision{}, newError(ErrorCodeValidation, "tenantId is required", nil)
	}
	priority := req.Priority
	if priority == "" {
		priority = model.ChatPriorityNormal
	}
	if !priority.Valid() {
		return Decision{}, newError(ErrorCodeValidation, "unknown chat priority", nil)
	}

	rule, err := s.resolver.Resolve(ctx, req.TenantID, req.SiteID)
	if err != nil {
		return Decision{}, err
	}
	if err := ValidateRule(rule); err != nil {
		return Decision{}, err
	}

	lock := s.scopeLock(rule.ScopeKey)
	lock.Lock()
	defer lock.Unlock()

	decision, err := s.decide(ctx, req, priority, rule)
	if err != nil {
		return Decision{}, err
	}
	if commit != nil {
		if err := commit(decision); err != nil {
			return Decision{}, err
		}
	}

	observeDecision(decision.Outcome)
	return decision, nil
}

// decide produces the routing decision for one chat. Runs under the scope
// lock held by AssignAndCommit.
func (s *Scheduler) decide(ctx context.Context, req Request, priority model.ChatPriority, rule model.AssignmentRuleItem) (Decision, error) {
	if s.queue.ShouldQueue(req.ChatID, priority) {
		return Decision{Outcome: OutcomeDeferred, ScopeKey: rule.ScopeKey}, nil
	}

	role := registry.RoleCommercial
	connected := s.registry.Find(registry.Criteria{Role: &role})
	if len(connected) == 0 {
		return Decision{Outcome: OutcomeUnassigned, ScopeKey: rule.ScopeKey}, nil
	}

	eligible, err := s.filterEligible(ctx, rule, connected)
	if err != nil {
		return Decision{}, err
	}

	// An empty eligible set, whether from working hours or from every
	// commercial sitting at the cap, falls through to the fallback strategy
	// over everyone connected. The decision reports the strategy used, so
	// callers can tell a fallback assignment from a regular one.
	pool := eligible
	strategy := rule.DefaultStrategy
	if len(eligible) == 0 {
		pool = connected
		strategy = rule.FallbackStrategy
		if strategy == "" {
			strategy = rule.DefaultStrategy
		}
	}

	ids, broadcast, err := s.selectCandidates(ctx, rule, strategy, pool, req.Tags)
	if err != nil {
		return Decision{}, err
	}
	if len(ids) == 0 {
		return Decision{Outcome: OutcomeUnassigned, Strategy: strategy, ScopeKey: rule.ScopeKey}, nil
	}

	return Decision{
		Outcome:       OutcomeAssigned,
		CommercialIDs: ids,
		Strategy:      strategy,
		ScopeKey:      rule.ScopeKey,
		Broadcast:     broadcast,
	}, nil
}

func (s *Scheduler) scopeLock(scopeKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.scopeLocks[scopeKey]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[scopeKey] = lock
	}
	return lock
}

// filterEligible applies the working-hours window and the per-commercial
// load cap. Outside the rule's working hours the eligible set is empty.
func (s *Scheduler) filterEligible(ctx context.Context, rule model.AssignmentRuleItem, connected []registry.Connection) ([]registry.Connection, error) {
	within, err := withinWorkingHours(rule.WorkingHours, s.now())
	if err != nil {
		return nil, err
	}
	if !within {
		return nil, nil
	}

	eligible := make([]registry.Connection, 0, len(connected))
	for _, conn := range connected {
		if rule.MaxChatsPerCommercial > 0 {
			count, err := s.chats.CountActiveChats(ctx, rule.TenantID, conn.UserID)
			if err != nil {
				return nil, newError(ErrorCodeInternal, "failed to count active chats", err)
			}
			if count >= rule.MaxChatsPerCommercial {
				continue
			}
		}
		eligible = append(eligible, conn)
	}
	return eligible, nil
}

// selectCandidates runs one strategy over a candidate pool. Candidates
// arrive sorted by user id (the registry's stable order), which the
// round-robin cursor indexes into.
func (s *Scheduler) selectCandidates(ctx context.Context, rule model.AssignmentRuleItem, strategy model.Strategy, pool []registry.Connection, tags []string) ([]string, bool, error) {
	if len(pool) == 0 {
		return nil, false, nil
	}

	switch strategy {
	case model.StrategyRoundRobin:
		id, err := s.pickByCursor(ctx, rule.ScopeKey, pool)
		if err != nil {
			return nil, false, err
		}
		return []string{id}, false, nil

	case model.StrategyRandom:
		return []string{pool[s.randIntn(len(pool))].UserID}, false, nil

	case model.StrategySkillBased:
		return s.selectSkillBased(ctx, rule, pool, tags)

	case model.StrategyWorkloadBalanced:
		return s.selectWorkloadBalanced(ctx, rule, pool)

	default:
		return nil, false, newError(ErrorCodeValidation, "unknown strategy", nil)
	}
}

// selectSkillBased scores each candidate by the summed weight of the chat
// tags it supports. With no matching tags anywhere the strategy has no
// distinguishable winner: unless skill routing is mandatory, every candidate
// is returned as a broadcast (first responder wins).
func (s *Scheduler) selectSkillBased(ctx context.Context, rule model.AssignmentRuleItem, pool []registry.Connection, tags []string) ([]string, bool, error) {
	best := 0
	scores := make([]int, len(pool))
	for i, conn := range pool {
		score := 0
		for _, tag := range tags {
			if !conn.HasTag(tag) {
				continue
			}
			weight, ok := rule.Priorities[tag]
			if !ok {
				weight = 1
			}
			score += weight
		}
		scores[i] = score
		if score > best {
			best = score
		}
	}

	if best == 0 {
		if rule.EnableSkillBasedRouting {
			return nil, false, nil
		}
		ids := make([]string, len(pool))
		for i, conn := range pool {
			ids[i] = conn.UserID
		}
		return ids, true, nil
	}

	tied := make([]registry.Connection, 0, len(pool))
	for i, conn := range pool {
		if scores[i] == best {
			tied = append(tied, conn)
		}
	}
	if len(tied) == 1 {
		return []string{tied[0].UserID}, false, nil
	}

	id, err := s.pickByCursor(ctx, rule.ScopeKey, tied)
	if err != nil {
		return nil, false, err
	}
	return []string{id}, false, nil
}

func (s *Scheduler) selectWorkloadBalanced(ctx context.Context, rule model.AssignmentRuleItem, pool []registry.Connection) ([]string, bool, error) {
	lowest := -1
	counts := make([]int, len(pool))
	for i, conn := range pool {
		count, err := s.chats.CountActiveChats(ctx, rule.TenantID, conn.UserID)
		if err != nil {
			return nil, false, newError(ErrorCodeInternal, "failed to count active chats", err)
		}
		counts[i] = count
		if lowest < 0 || count < lowest {
			lowest = count
		}
	}

	tied := make([]registry.Connection, 0, len(pool))
	for i, conn := range pool {
		if counts[i] == lowest {
			tied = append(tied, conn)
		}
	}
	if len(tied) == 1 {
		return []string{tied[0].UserID}, false, nil
	}

	id, err := s.pickByCursor(ctx, rule.ScopeKey, tied)
	if err != nil {
		return nil, false, err
	}
	return []string{id}, false, nil
}

func (s *Scheduler) pickByCursor(ctx context.Context, scopeKey string, pool []registry.Connection) (string, error) {
	cursor, err := s.cursors.Next(ctx, scopeKey)
	if err != nil {
		return "", newError(ErrorCodeInternal, "failed to advance round-robin cursor", err)
	}
	return pool[cursor%len(pool)].UserID, nil
}
