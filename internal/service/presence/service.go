package presence

import (
	"context"
	"errors"
	"time"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/events"
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

// Notifier pushes a notification to a recipient's live sockets. Implemented
// by the dispatcher; delivery is best-effort and never returns an error.
type Notifier interface {
	Notify(recipientID, notificationType string, payload interface{})
	NotifyAll(recipientIDs []string, notificationType string, payload interface{})
}

// Service derives presence transitions from raw connect/disconnect signals
// and explicit activity commands, reconciles chat participants, and fans the
// resulting events out.
type Service struct {
	registry registry.Store
	repo     Repository
	notifier Notifier
	bus      *events.Bus
	now      func() time.Time
}

func New(db *database.Database, reg registry.Store, notifier Notifier, bus *events.Bus) *Service {
	return NewWithRepository(NewDynamoRepository(db), reg, notifier, bus, time.Now)
}

func NewWithRepository(repo Repository, reg registry.Store, notifier Notifier, bus *events.Bus, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		registry: reg,
		repo:     repo,
		notifier: notifier,
		bus:      bus,
		now:      now,
	}
}

// Connect registers a socket. Only the first socket of a user produces an
// online transition; further tabs or devices are silent.
func (s *Service) Connect(ctx context.Context, userID string, role registry.Role, tags []string, socketID string) error {
	if userID == "" || socketID == "" {
		return newError(ErrorCodeValidation, "userId and socketId are required", nil)
	}

	cameOnline := s.registry.Add(userID, role, tags, socketID)
	if !cameOnline {
		return nil
	}
	return s.reconcileOnlineStatus(ctx, userID, true)
}

// Disconnect drops a socket. Only the last socket closing produces an
// offline transition.
func (s *Service) Disconnect(ctx context.Context, userID, socketID string) error {
	if userID == "" || socketID == "" {
		return newError(ErrorCodeValidation, "userId and socketId are required", nil)
	}

	wentOffline := s.registry.Remove(userID, socketID)
	if !wentOffline {
		return nil
	}
	return s.reconcileOnlineStatus(ctx, userID, false)
}

// reconcileOnlineStatus flips the participant value in every chat the user
// takes part in and tells the other participants, never the actor.
func (s *Service) reconcileOnlineStatus(ctx context.Context, userID string, online bool) error {
	chats, err := s.repo.ListChatsForParticipant(ctx, userID)
	if err != nil {
		return newError(ErrorCodeInternal, "failed to list chats for participant", err)
	}

	for _, chat := range chats {
		participant, ok := chat.Participant(userID)
		if !ok || participant.IsOnline == online {
			continue
		}

		updated := chat.WithParticipant(participant.WithOnline(online))
		updated.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		if err := s.repo.SaveChat(ctx, updated); err != nil {
			return newError(ErrorCodeInternal, "failed to persist participant status", err)
		}

		event := events.ParticipantOnlineStatusChanged{
			ChatID:        chat.ChatID,
			ParticipantID: userID,
			IsOnline:      online,
		}
		s.bus.Publish(event)
		s.notifier.NotifyAll(chat.OtherParticipantIDs(userID), string(events.TypeParticipantOnlineStatusChanged), event)
	}
	return nil
}

// MarkSeen records that the participant saw the chat now and is viewing it.
// A missing chat or participant is a hard error: it signals a consistency
// bug upstream and must never be swallowed.
func (s *Service) MarkSeen(ctx context.Context, tenantID, chatID, userID string) (model.ParticipantItem, error) {
	chat, participant, err := s.loadParticipant(ctx, tenantID, chatID, userID)
	if err != nil {
		return model.ParticipantItem{}, err
	}

	seenAt := s.now().UTC()
	updated := participant.WithSeen(seenAt.Format(time.RFC3339))
	if err := s.saveParticipant(ctx, chat, updated); err != nil {
		return model.ParticipantItem{}, err
	}

	seen := events.ParticipantSeenChat{
		ChatID:        chat.ChatID,
		ParticipantID: userID,
		SeenAt:        seenAt,
	}
	viewing := events.ParticipantViewingStatusChanged{
		ChatID:        chat.ChatID,
		ParticipantID: userID,
		IsViewing:     true,
	}
	s.bus.Publish(seen)
	s.bus.Publish(viewing)

	others := chat.OtherParticipantIDs(userID)
	s.notifier.NotifyAll(others, string(events.TypeParticipantSeenChat), seen)
	s.notifier.NotifyAll(others, string(events.TypeParticipantViewingStatusChanged), viewing)

	return updated, nil
}

// MarkUnseen clears the viewing flag. LastSeenAt stays untouched: leaving a
// chat does not erase the seen history.
func (s *Service) MarkUnseen(ctx context.Context, tenantID, chatID, userID string) (model.ParticipantItem, error) {
	chat, participant, err := s.loadParticipant(ctx, tenantID, chatID, userID)
	if err != nil {
		return model.ParticipantItem{}, err
	}

	updated := participant.WithUnseen()
	if err := s.saveParticipant(ctx, chat, updated); err != nil {
		return model.ParticipantItem{}, err
	}

	viewing := events.ParticipantViewingStatusChanged{
		ChatID:        chat.ChatID,
		ParticipantID: userID,
		IsViewing:     false,
	}
	s.bus.Publish(viewing)
	s.notifier.NotifyAll(chat.OtherParticipantIDs(userID), string(events.TypeParticipantViewingStatusChanged), viewing)

	return updated, nil
}

// SetTyping produces a fresh TypingStatus for the participant and notifies
// the co-participants. The status itself is ephemeral; consumers check
// IsExpired when reading it.
func (s *Service) SetTyping(ctx context.Context, tenantID, chatID, userID string, typing bool) (TypingStatus, error) {
	chat, participant, err := s.loadParticipant(ctx, tenantID, chatID, userID)
	if err != nil {
		return TypingStatus{}, err
	}

	if err := s.saveParticipant(ctx, chat, participant.WithTyping(typing)); err != nil {
		return TypingStatus{}, err
	}

	status := TypingStatus{
		UserID:    userID,
		ChatID:    chatID,
		IsTyping:  typing,
		Timestamp: s.now().UTC(),
	}

	event := events.TypingStatusChanged{
		ChatID:    chatID,
		UserID:    userID,
		IsTyping:  typing,
		Timestamp: status.Timestamp,
	}
	s.bus.Publish(event)
	s.notifier.NotifyAll(chat.OtherParticipantIDs(userID), string(events.TypeTypingStatusChanged), event)

	return status, nil
}

func (s *Service) loadParticipant(ctx context.Context, tenantID, chatID, userID string) (model.ChatItem, model.ParticipantItem, error) {
	if tenantID == "" || chatID == "" || userID == "" {
		return model.ChatItem{}, model.ParticipantItem{}, newError(ErrorCodeValidation, "tenantId, chatId and userId are required", nil)
	}

	chat, err := s.repo.GetChat(ctx, tenantID, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatItem{}, model.ParticipantItem{}, newError(ErrorCodeNotFound, "chat not found", err)
		}
		return model.ChatItem{}, model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to fetch chat", err)
	}

	participant, ok := chat.Participant(userID)
	if !ok {
		return model.ChatItem{}, model.ParticipantItem{}, newError(ErrorCodeNotFound, "participant not found", nil)
	}
	return chat, participant, nil
}

func (s *Service) saveParticipant(ctx context.Context, chat model.ChatItem, participant model.ParticipantItem) error {
	updated := chat.WithParticipant(participant)
	updated.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.repo.SaveChat(ctx, updated); err != nil {
		return newError(ErrorCodeInternal, "failed to persist participant", err)
	}
	return nil
}
