package endpoints

import (
	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/dto"
	internaljwt "chat-routing-backend/internal/jwt"
	"chat-routing-backend/internal/model"
	chatservice "chat-routing-backend/internal/service/chat"
	"chat-routing-backend/internal/service/presence"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ChatEndpoints interface {
	Chats(http.ResponseWriter, *http.Request) error
	ChatByID(http.ResponseWriter, *http.Request) error
	Redispatch(http.ResponseWriter, *http.Request) error
}

type chatEndpoints struct {
	chats      *chatservice.Service
	presence   *presence.Service
	chatPrefix string
}

func NewChatEndpoints(chats *chatservice.Service, presenceSvc *presence.Service, prefix string) ChatEndpoints {
	return &chatEndpoints{
		chats:      chats,
		presence:   presenceSvc,
		chatPrefix: strings.TrimRight(prefix, "/") + "/chats/",
	}
}

func (h *chatEndpoints) Chats(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleOpenChat,
	})
}

// ChatByID serves /chats/{id}, the participant activity subpaths
// /chats/{id}/{seen|unseen|typing|not-typing} and /chats/{id}/redispatch.
func (h *chatEndpoints) ChatByID(w http.ResponseWriter, r *http.Request) error {
	chatID, action, err := h.extractChatPath(r.URL.Path)
	if err != nil {
		return err
	}

	switch action {
	case "":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleGetChat(w, r, chatID)
			},
		})
	case "seen", "unseen", "typing", "not-typing":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleActivity(w, r, chatID, action)
			},
		})
	case "redispatch":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleRedispatchChat(w, r, chatID)
			},
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown chat action %q", action),
		}
	}
}

func (h *chatEndpoints) Redispatch(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleRedispatch,
	})
}

func (h *chatEndpoints) handleOpenChat(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r, internaljwt.RoleVisitor)
	if err != nil {
		return err
	}

	var req dto.OpenChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode open chat request: %w", err),
		}
	}

	chat, err := h.chats.OpenChat(r.Context(), chatservice.OpenRequest{
		TenantID:    identity.TenantID,
		SiteID:      strings.TrimSpace(req.SiteID),
		VisitorID:   identity.UserID,
		VisitorName: identity.Name,
		Priority:    model.ChatPriority(req.Priority),
		Tags:        req.Tags,
	})
	if err != nil {
		return chatServiceError(err)
	}

	return api.WriteJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (h *chatEndpoints) handleGetChat(w http.ResponseWriter, r *http.Request, chatID string) error {
	identity, err := identityFromRequest(r, internaljwt.RoleVisitor, internaljwt.RoleCommercial)
	if err != nil {
		return err
	}

	chat, err := h.chats.GetChat(r.Context(), identity.TenantID, chatID)
	if err != nil {
		return chatServiceError(err)
	}

	return api.WriteJSON(w, http.StatusOK, toChatResponse(chat))
}

func (h *chatEndpoints) handleActivity(w http.ResponseWriter, r *http.Request, chatID, action string) error {
	identity, err := identityFromRequest(r, internaljwt.RoleVisitor, internaljwt.RoleCommercial)
	if err != nil {
		return err
	}

	switch action {
	case "seen":
		participant, err := h.presence.MarkSeen(r.Context(), identity.TenantID, chatID, identity.UserID)
		if err != nil {
			return presenceServiceError(err)
		}
		return api.WriteJSON(w, http.StatusOK, toParticipantResponse(participant))
	case "unseen":
		participant, err := h.presence.MarkUnseen(r.Context(), identity.TenantID, chatID, identity.UserID)
		if err != nil {
			return presenceServiceError(err)
		}
		return api.WriteJSON(w, http.StatusOK, toParticipantResponse(participant))
	case "typing", "not-typing":
		status, err := h.presence.SetTyping(r.Context(), identity.TenantID, chatID, identity.UserID, action == "typing")
		if err != nil {
			return presenceServiceError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.TypingStatusResponse{
			UserID:    status.UserID,
			ChatID:    status.ChatID,
			IsTyping:  status.IsTyping,
			Timestamp: status.Timestamp.Format(time.RFC3339),
		})
	}
	return nil
}

func (h *chatEndpoints) handleRedispatchChat(w http.ResponseWriter, r *http.Request, chatID string) error {
	identity, err := identityFromRequest(r, internaljwt.RoleCommercial)
	if err != nil {
		return err
	}

	chat, err := h.chats.RedispatchChat(r.Context(), identity.TenantID, chatID)
	if err != nil {
		return chatServiceError(err)
	}

	return api.WriteJSON(w, http.StatusOK, toChatResponse(chat))
}

func (h *chatEndpoints) handleRedispatch(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r, internaljwt.RoleCommercial)
	if err != nil {
		return err
	}

	assigned, err := h.chats.RedispatchQueued(r.Context(), identity.TenantID)
	if err != nil {
		return chatServiceError(err)
	}

	return api.WriteJSON(w, http.StatusOK, dto.RedispatchResponse{Assigned: assigned})
}

func (h *chatEndpoints) extractChatPath(urlPath string) (chatID, action string, err error) {
	if !strings.HasPrefix(urlPath, h.chatPrefix) {
		return "", "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("path %s outside chat prefix", urlPath),
		}
	}

	rest := strings.Trim(strings.TrimPrefix(urlPath, h.chatPrefix), "/")
	if rest == "" {
		return "", "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Chat not found",
			ErrorLog:   fmt.Errorf("chat id missing in path %s", urlPath),
		}
	}

	parts := strings.SplitN(rest, "/", 2)
	chatID = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return chatID, action, nil
}

func identityFromRequest(r *http.Request, roles ...internaljwt.Role) (internaljwt.Identity, error) {
	token := ExtractTokenFromHeaders(r)
	if token == "" {
		return internaljwt.Identity{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("missing bearer token"),
		}
	}

	var identity internaljwt.Identity
	var err error
	for _, role := range roles {
		identity, err = internaljwt.ParseToken(token, role)
		if err == nil {
			return identity, nil
		}
	}
	return internaljwt.Identity{}, &HTTPError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Unauthorized",
		ErrorLog:   fmt.Errorf("parse token: %w", err),
	}
}

func chatServiceError(err error) error {
	svcErr, ok := err.(*chatservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("chat service: %w", err),
		}
	}
	return httpErrorFromCode(string(svcErr.Code), svcErr.Message, svcErr.Err)
}

func presenceServiceError(err error) error {
	svcErr, ok := err.(*presence.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("presence service: %w", err),
		}
	}
	return httpErrorFromCode(string(svcErr.Code), svcErr.Message, svcErr.Err)
}

func httpErrorFromCode(code, message string, cause error) error {
	logErr := fmt.Errorf("%s", message)
	if cause != nil {
		logErr = fmt.Errorf("%s: %w", message, cause)
	}

	switch code {
	case "validation_error":
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: message, ErrorLog: logErr}
	case "not_found":
		return &HTTPError{StatusCode: http.StatusNotFound, Message: message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func toChatResponse(chat model.ChatItem) dto.ChatResponse {
	participants := make([]dto.ParticipantResponse, len(chat.Participants))
	for i, p := range chat.Participants {
		participants[i] = toParticipantResponse(p)
	}
	return dto.ChatResponse{
		ChatID:                chat.ChatID,
		TenantID:              chat.TenantID,
		SiteID:                chat.SiteID,
		Priority:              string(chat.Priority),
		Status:                string(chat.Status),
		Tags:                  chat.Tags,
		Participants:          participants,
		AssignedCommercialIDs: chat.AssignedCommercialIDs,
		CreatedAt:             chat.CreatedAt,
		UpdatedAt:             chat.UpdatedAt,
		QueuedAt:              chat.QueuedAt,
	}
}

func toParticipantResponse(p model.ParticipantItem) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		ID:           p.ID,
		Name:         p.Name,
		IsCommercial: p.IsCommercial,
		IsOnline:     p.IsOnline,
		AssignedAt:   p.AssignedAt,
		LastSeenAt:   p.LastSeenAt,
		IsViewing:    p.IsViewing,
		IsTyping:     p.IsTyping,
	}
}
