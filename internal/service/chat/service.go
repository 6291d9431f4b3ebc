package chat

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/events"
	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/registry"
	"chat-routing-backend/internal/service/assignment"
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

// Notifier pushes a notification to a recipient's live sockets. Delivery is
// best-effort; failures are handled downstream and never bubble up here.
type Notifier interface {
	Notify(recipientID, notificationType string, payload interface{})
	NotifyAll(recipientIDs []string, notificationType string, payload interface{})
}

// OpenRequest describes a visitor opening a new chat.
type OpenRequest struct {
	TenantID    string
	SiteID      string
	VisitorID   string
	VisitorName string
	Priority    model.ChatPriority
	Tags        []string
}

// Service owns the chat lifecycle: opening, dispatching through the
// scheduler, queueing, and draining the queue back through the scheduler.
type Service struct {
	repo      Repository
	scheduler *assignment.Scheduler
	queue     *assignment.QueuePolicy
	registry  registry.Store
	notifier  Notifier
	bus       *events.Bus
	now       func() time.Time
	newID     func() string
}

func New(db *database.Database, scheduler *assignment.Scheduler, queue *assignment.QueuePolicy, reg registry.Store, notifier Notifier, bus *events.Bus) *Service {
	return NewWithRepository(NewDynamoRepository(db), scheduler, queue, reg, notifier, bus, time.Now)
}

func NewWithRepository(repo Repository, scheduler *assignment.Scheduler, queue *assignment.QueuePolicy, reg registry.Store, notifier Notifier, bus *events.Bus, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		queue:     queue,
		registry:  reg,
		notifier:  notifier,
		bus:       bus,
		now:       now,
		newID:     uuid.NewString,
	}
}

// OpenChat creates the chat with the visitor as its first participant and
// runs it through the scheduler. A full queue escalates the chat to direct
// dispatch instead of growing the backlog without bound.
func (s *Service) OpenChat(ctx context.Context, req OpenRequest) (model.ChatItem, error) {
	if req.TenantID == "" {
		return model.ChatItem{}, newError(ErrorCodeValidation, "tenantId is required", nil)
	}
	if req.VisitorID == "" {
		return model.ChatItem{}, newError(ErrorCodeValidation, "visitorId is required", nil)
	}
	priority := req.Priority
	if priority == "" {
		priority = model.ChatPriorityNormal
	}
	if !priority.Valid() {
		return model.ChatItem{}, newError(ErrorCodeValidation, "invalid chat priority", nil)
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	chatID := s.newID()
	chat := model.ChatItem{
		PK:        model.ChatPK(req.TenantID, chatID),
		ChatID:    chatID,
		TenantID:  req.TenantID,
		SiteID:    req.SiteID,
		Priority:  priority,
		Status:    model.ChatStatusOpen,
		Tags:      req.Tags,
		CreatedAt: nowStr,
		UpdatedAt: nowStr,
	}
	chat = chat.WithParticipant(model.NewVisitorParticipant(req.VisitorID, req.VisitorName, nowStr, true))

	if err := s.repo.CreateChat(ctx, chat); err != nil {
		return model.ChatItem{}, newError(ErrorCodeInternal, "failed to create chat", err)
	}
	chatsOpenedTotal.Inc()

	effective := priority
	if s.queue.ShouldQueue(chatID, priority) {
		full, err := s.queueFull(ctx, req.TenantID)
		if err != nil {
			return model.ChatItem{}, err
		}
		if full {
			effective = model.ChatPriorityUrgent
		}
	}

	return s.dispatch(ctx, chat, effective)
}

// GetChat loads a chat. A missing chat is a hard error: callers pass ids
// they obtained from us.
func (s *Service) GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error) {
	if tenantID == "" || chatID == "" {
		return model.ChatItem{}, newError(ErrorCodeValidation, "tenantId and chatId are required", nil)
	}
	chat, err := s.repo.GetChat(ctx, tenantID, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatItem{}, newError(ErrorCodeNotFound, "chat not found", err)
		}
		return model.ChatItem{}, newError(ErrorCodeInternal, "failed to fetch chat", err)
	}
	return chat, nil
}

// RedispatchChat re-runs the scheduler for a single queued chat, escalating
// past the wait ceiling the same way RedispatchQueued does.
func (s *Service) RedispatchChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error) {
	chat, err := s.GetChat(ctx, tenantID, chatID)
	if err != nil {
		return model.ChatItem{}, err
	}
	if chat.Status != model.ChatStatusQueued {
		return model.ChatItem{}, newError(ErrorCodeValidation, "chat is not queued", nil)
	}
	return s.dispatch(ctx, chat, s.effectivePriority(chat))
}

// effectivePriority escalates a queued chat to URGENT once it has waited
// past the configured ceiling, for the next dispatch only. The stored
// priority is never rewritten.
func (s *Service) effectivePriority(chat model.ChatItem) model.ChatPriority {
	maxWait := time.Duration(s.queue.Config().MaxQueueWaitTimeSeconds) * time.Second
	if maxWait <= 0 || chat.QueuedAt == "" {
		return chat.Priority
	}
	queuedAt, err := time.Parse(time.RFC3339, chat.QueuedAt)
	if err != nil {
		return chat.Priority
	}
	if s.now().Sub(queuedAt) >= maxWait {
		return model.ChatPriorityUrgent
	}
	return chat.Priority
}

// RedispatchQueued drains the tenant's queue oldest-first. Chats that sat
// past the configured wait ceiling are escalated so the queue policy cannot
// defer them again. Returns how many chats left the queue.
func (s *Service) RedispatchQueued(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, newError(ErrorCodeValidation, "tenantId is required", nil)
	}

	queued, err := s.repo.ListChatsByStatus(ctx, tenantID, model.ChatStatusQueued)
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to list queued chats", err)
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].QueuedAt < queued[j].QueuedAt })
	queueDepth.Set(float64(len(queued)))

	assigned := 0
	for _, chat := range queued {
		updated, err := s.dispatch(ctx, chat, s.effectivePriority(chat))
		if err != nil {
			log.Printf("redispatch chat %s: %v", chat.ChatID, err)
			continue
		}
		if updated.Status == model.ChatStatusOpen {
			assigned++
		}
	}
	return assigned, nil
}

// RedispatchAllQueued sweeps every tenant that currently has queued chats.
// Backs the periodic redispatch ticker; per-tenant failures are logged and
// do not stop the sweep.
func (s *Service) RedispatchAllQueued(ctx context.Context) (int, error) {
	tenants, err := s.repo.ListTenantsWithStatus(ctx, model.ChatStatusQueued)
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to list queued tenants", err)
	}

	assigned := 0
	for _, tenantID := range tenants {
		n, err := s.RedispatchQueued(ctx, tenantID)
		if err != nil {
			log.Printf("redispatch tenant %s: %v", tenantID, err)
			continue
		}
		assigned += n
	}
	return assigned, nil
}

// dispatch runs the scheduler for the chat and applies the decision:
// assignment, queueing, or leaving the chat queued when nobody is eligible.
// Persistence happens inside the scheduler's commit window, so the
// active-chat count the cap filter reads cannot go stale between the
// decision and the write. Events and notifications go out afterwards.
func (s *Service) dispatch(ctx context.Context, chat model.ChatItem, priority model.ChatPriority) (model.ChatItem, error) {
	var (
		updated       model.ChatItem
		alreadyQueued bool
	)
	decision, err := s.scheduler.AssignAndCommit(ctx, assignment.Request{
		ChatID:   chat.ChatID,
		TenantID: chat.TenantID,
		SiteID:   chat.SiteID,
		Priority: priority,
		Tags:     chat.Tags,
	}, func(d assignment.Decision) error {
		var commitErr error
		if d.Outcome == assignment.OutcomeAssigned {
			updated, commitErr = s.persistAssignment(ctx, chat, d)
			return commitErr
		}
		alreadyQueued = chat.Status == model.ChatStatusQueued
		updated, commitErr = s.persistQueued(ctx, chat)
		return commitErr
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return model.ChatItem{}, err
		}
		return model.ChatItem{}, newError(ErrorCodeInternal, "scheduler failed", err)
	}

	if decision.Outcome == assignment.OutcomeAssigned {
		s.announceAssignment(updated, decision)
	} else if !alreadyQueued {
		s.announceQueued(updated)
	}
	return updated, nil
}

func (s *Service) persistAssignment(ctx context.Context, chat model.ChatItem, decision assignment.Decision) (model.ChatItem, error) {
	nowStr := s.now().UTC().Format(time.RFC3339)

	for _, id := range decision.CommercialIDs {
		if _, ok := chat.Participant(id); ok {
			continue
		}
		chat = chat.WithParticipant(model.NewCommercialParticipant(id, "", nowStr, s.registry.IsOnline(id)))
	}
	chat.AssignedCommercialIDs = decision.CommercialIDs
	chat.Status = model.ChatStatusOpen
	chat.UpdatedAt = nowStr

	if err := s.repo.SaveChat(ctx, chat); err != nil {
		return model.ChatItem{}, newError(ErrorCodeInternal, "failed to persist assignment", err)
	}
	return chat, nil
}

func (s *Service) announceAssignment(chat model.ChatItem, decision assignment.Decision) {
	event := events.ChatCommercialsAssigned{
		ChatID:        chat.ChatID,
		TenantID:      chat.TenantID,
		CommercialIDs: decision.CommercialIDs,
		Strategy:      string(decision.Strategy),
		Broadcast:     decision.Broadcast,
		AssignedAt:    s.now().UTC(),
	}
	s.bus.Publish(event)
	s.notifier.NotifyAll(chat.ParticipantIDs, string(events.TypeChatCommercialsAssigned), event)
}

func (s *Service) persistQueued(ctx context.Context, chat model.ChatItem) (model.ChatItem, error) {
	nowStr := s.now().UTC().Format(time.RFC3339)

	chat.Status = model.ChatStatusQueued
	if chat.QueuedAt == "" {
		chat.QueuedAt = nowStr
	}
	chat.UpdatedAt = nowStr

	if err := s.repo.SaveChat(ctx, chat); err != nil {
		return model.ChatItem{}, newError(ErrorCodeInternal, "failed to persist queued chat", err)
	}
	return chat, nil
}

func (s *Service) announceQueued(chat model.ChatItem) {
	event := events.ChatQueued{
		ChatID:   chat.ChatID,
		TenantID: chat.TenantID,
		QueuedAt: s.now().UTC(),
	}
	s.bus.Publish(event)
	s.notifier.NotifyAll(chat.ParticipantIDs, string(events.TypeChatQueued), event)

	if s.queue.Config().NotifyCommercialsOnNewChats {
		role := registry.RoleCommercial
		for _, conn := range s.registry.Find(registry.Criteria{Role: &role}) {
			s.notifier.Notify(conn.UserID, string(events.TypeChatQueued), event)
		}
	}
}

func (s *Service) queueFull(ctx context.Context, tenantID string) (bool, error) {
	max := s.queue.Config().MaxQueueSizePerDepartment
	if max <= 0 {
		return false, nil
	}
	queued, err := s.repo.ListChatsByStatus(ctx, tenantID, model.ChatStatusQueued)
	if err != nil {
		return false, newError(ErrorCodeInternal, "failed to measure queue depth", err)
	}
	return len(queued) >= max, nil
}
