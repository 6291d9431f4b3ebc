package endpoints

import (
	"bytes"
	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/middleware"
	"chat-routing-backend/internal/dto"
	"chat-routing-backend/internal/events"
	internaljwt "chat-routing-backend/internal/jwt"
	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/queue"
	"chat-routing-backend/internal/registry"
	"chat-routing-backend/internal/service/assignment"
	chatservice "chat-routing-backend/internal/service/chat"
	"chat-routing-backend/internal/service/presence"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type routingTestStore struct {
	mu    sync.Mutex
	chats map[string]model.ChatItem
	rules map[string]model.AssignmentRuleItem
}

func newRoutingTestStore() *routingTestStore {
	return &routingTestStore{
		chats: make(map[string]model.ChatItem),
		rules: make(map[string]model.AssignmentRuleItem),
	}
}

type chatTestRepository struct {
	store *routingTestStore
}

func (r *chatTestRepository) CreateChat(_ context.Context, chat model.ChatItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.chats[chat.PK] = chat
	return nil
}

func (r *chatTestRepository) GetChat(_ context.Context, tenantID, chatID string) (model.ChatItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	chat, ok := r.store.chats[model.ChatPK(tenantID, chatID)]
	if !ok {
		return model.ChatItem{}, chatservice.ErrNotFound
	}
	return chat, nil
}

func (r *chatTestRepository) SaveChat(_ context.Context, chat model.ChatItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.chats[chat.PK] = chat
	return nil
}

func (r *chatTestRepository) ListChatsByStatus(_ context.Context, tenantID string, status model.ChatStatus) ([]model.ChatItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.ChatItem
	for _, chat := range r.store.chats {
		if chat.TenantID == tenantID && chat.Status == status {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (r *chatTestRepository) ListTenantsWithStatus(_ context.Context, status model.ChatStatus) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	seen := map[string]bool{}
	var tenants []string
	for _, chat := range r.store.chats {
		if chat.Status == status && !seen[chat.TenantID] {
			seen[chat.TenantID] = true
			tenants = append(tenants, chat.TenantID)
		}
	}
	return tenants, nil
}

func (r *chatTestRepository) CountActiveChats(_ context.Context, tenantID, commercialID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, chat := range r.store.chats {
		if chat.TenantID == tenantID && chat.Status == model.ChatStatusOpen && chat.HasAssignedCommercial(commercialID) {
			count++
		}
	}
	return count, nil
}

type presenceTestRepository struct {
	store *routingTestStore
}

func (r *presenceTestRepository) GetChat(_ context.Context, tenantID, chatID string) (model.ChatItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	chat, ok := r.store.chats[model.ChatPK(tenantID, chatID)]
	if !ok {
		return model.ChatItem{}, presence.ErrNotFound
	}
	return chat, nil
}

func (r *presenceTestRepository) SaveChat(_ context.Context, chat model.ChatItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.chats[chat.PK] = chat
	return nil
}

func (r *presenceTestRepository) ListChatsForParticipant(_ context.Context, userID string) ([]model.ChatItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.ChatItem
	for _, chat := range r.store.chats {
		if _, ok := chat.Participant(userID); ok {
			out = append(out, chat)
		}
	}
	return out, nil
}

type ruleTestRepository struct {
	store *routingTestStore
}

func (r *ruleTestRepository) GetRule(_ context.Context, scopeKey string) (model.AssignmentRuleItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rule, ok := r.store.rules[scopeKey]
	if !ok {
		return model.AssignmentRuleItem{}, assignment.ErrNotFound
	}
	return rule, nil
}

func (r *ruleTestRepository) PutRule(_ context.Context, rule model.AssignmentRuleItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.rules[rule.ScopeKey] = rule
	return nil
}

func (r *ruleTestRepository) DeleteRule(_ context.Context, scopeKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.rules, scopeKey)
	return nil
}

func (r *ruleTestRepository) ListRules(_ context.Context, tenantID string) ([]model.AssignmentRuleItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.AssignmentRuleItem
	for _, rule := range r.store.rules {
		if rule.TenantID == tenantID {
			out = append(out, rule)
		}
	}
	return out, nil
}

type silentNotifier struct{}

func (n *silentNotifier) Notify(string, string, interface{})      {}
func (n *silentNotifier) NotifyAll([]string, string, interface{}) {}

func routingFixedTime() time.Time {
	return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
}

func setupRoutingHandler(t *testing.T, store *routingTestStore) (http.Handler, *registry.Registry) {
	t.Helper()

	internaljwt.RoleSecrets[internaljwt.RoleVisitor] = "test-secret"
	internaljwt.RoleSecrets[internaljwt.RoleCommercial] = "test-secret"

	reg := registry.New()
	bus := events.NewBus()
	notifier := &silentNotifier{}

	chatRepo := &chatTestRepository{store: store}
	resolver := assignment.NewResolver(&ruleTestRepository{store: store})
	queuePolicy := assignment.NewQueuePolicy(assignment.DefaultQueueConfig())
	scheduler := assignment.NewScheduler(resolver, reg, chatRepo, assignment.NewMemoryCursorStore(), queuePolicy)
	scheduler.SetClock(routingFixedTime)

	chatSvc := chatservice.NewWithRepository(chatRepo, scheduler, queuePolicy, reg, notifier, bus, routingFixedTime)
	presenceSvc := presence.NewWithRepository(&presenceTestRepository{store: store}, reg, notifier, bus, routingFixedTime)

	chatEndpoints := NewChatEndpoints(chatSvc, presenceSvc, "/api/v1")

	queueManager := queue.NewRequestQueueManager(10, 1)
	t.Cleanup(queueManager.Shutdown)
	server := api.NewAPIServer(":0", queueManager, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chats", server.MakeHTTPHandleFunc(chatEndpoints.Chats, middleware.ValidateVisitorJWT))
	mux.HandleFunc("/api/v1/chats/redispatch", server.MakeHTTPHandleFunc(chatEndpoints.Redispatch, middleware.ValidateCommercialJWT))
	mux.HandleFunc("/api/v1/chats/", server.MakeHTTPHandleFunc(chatEndpoints.ChatByID, middleware.ValidateAnyJWT))
	return mux, reg
}

func bearer(t *testing.T, identity internaljwt.Identity, role internaljwt.Role) string {
	t.Helper()
	token, err := internaljwt.CreateToken(identity, role, 0)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return "Bearer " + token
}

func visitorBearer(t *testing.T) string {
	return bearer(t, internaljwt.Identity{UserID: "visitor-1", TenantID: "tenant-1", Name: "Visitor"}, internaljwt.RoleVisitor)
}

func commercialBearer(t *testing.T) string {
	return bearer(t, internaljwt.Identity{UserID: "comm-1", TenantID: "tenant-1", Name: "Commercial"}, internaljwt.RoleCommercial)
}

func TestOpenChatEndpointAssignsConnectedCommercial(t *testing.T) {
	store := newRoutingTestStore()
	handler, reg := setupRoutingHandler(t, store)

	reg.Add("comm-1", registry.RoleCommercial, nil, "socket-1")

	payload, _ := json.Marshal(dto.OpenChatRequest{Priority: "HIGH"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", visitorBearer(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(model.ChatStatusOpen) {
		t.Fatalf("expected open chat, got %s", resp.Status)
	}
	if len(resp.AssignedCommercialIDs) != 1 || resp.AssignedCommercialIDs[0] != "comm-1" {
		t.Fatalf("expected comm-1 assigned, got %v", resp.AssignedCommercialIDs)
	}
	if resp.Priority != string(model.ChatPriorityHigh) {
		t.Fatalf("expected HIGH priority, got %s", resp.Priority)
	}
	if len(resp.Participants) != 2 {
		t.Fatalf("expected visitor and commercial participants, got %d", len(resp.Participants))
	}
}

func TestOpenChatEndpointRejectsMissingToken(t *testing.T) {
	store := newRoutingTestStore()
	handler, _ := setupRoutingHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestOpenChatEndpointRejectsBadPriority(t *testing.T) {
	store := newRoutingTestStore()
	handler, _ := setupRoutingHandler(t, store)

	payload := []byte(`{"priority":"WHENEVER"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", bytes.NewReader(payload))
	req.Header.Set("Authorization", visitorBearer(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetChatEndpointUnknownChat(t *testing.T) {
	store := newRoutingTestStore()
	handler, _ := setupRoutingHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/no-such-chat", nil)
	req.Header.Set("Authorization", commercialBearer(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatSeenEndpointMarksParticipantViewing(t *testing.T) {
	store := newRoutingTestStore()
	handler, _ := setupRoutingHandler(t, store)

	created := routingFixedTime().Add(-time.Hour).Format(time.RFC3339)
	chat := model.ChatItem{
		PK:        model.ChatPK("tenant-1", "chat-1"),
		ChatID:    "chat-1",
		TenantID:  "tenant-1",
		Priority:  model.ChatPriorityNormal,
		Status:    model.ChatStatusOpen,
		CreatedAt: created,
		UpdatedAt: created,
	}
	chat = chat.WithParticipant(model.NewVisitorParticipant("visitor-1", "Visitor", created, true))
	chat = chat.WithParticipant(model.NewCommercialParticipant("comm-1", "Commercial", created, true))
	store.chats[chat.PK] = chat

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/seen", nil)
	req.Header.Set("Authorization", commercialBearer(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.ParticipantResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsViewing {
		t.Fatalf("expected participant to be viewing")
	}
	if resp.LastSeenAt != routingFixedTime().Format(time.RFC3339) {
		t.Fatalf("expected lastSeenAt %s, got %s", routingFixedTime().Format(time.RFC3339), resp.LastSeenAt)
	}
}

func TestRedispatchEndpointDrainsQueuedChat(t *testing.T) {
	store := newRoutingTestStore()
	handler, reg := setupRoutingHandler(t, store)

	queuedAt := routingFixedTime().Add(-time.Minute).Format(time.RFC3339)
	chat := model.ChatItem{
		PK:        model.ChatPK("tenant-1", "chat-1"),
		ChatID:    "chat-1",
		TenantID:  "tenant-1",
		Priority:  model.ChatPriorityNormal,
		Status:    model.ChatStatusQueued,
		CreatedAt: queuedAt,
		UpdatedAt: queuedAt,
		QueuedAt:  queuedAt,
	}
	chat = chat.WithParticipant(model.NewVisitorParticipant("visitor-1", "Visitor", queuedAt, true))
	store.chats[chat.PK] = chat

	reg.Add("comm-1", registry.RoleCommercial, nil, "socket-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/redispatch", nil)
	req.Header.Set("Authorization", commercialBearer(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.RedispatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Assigned != 1 {
		t.Fatalf("expected 1 assigned, got %d", resp.Assigned)
	}

	updated := store.chats[model.ChatPK("tenant-1", "chat-1")]
	if updated.Status != model.ChatStatusOpen {
		t.Fatalf("expected chat reopened, got %s", updated.Status)
	}
	if !updated.HasAssignedCommercial("comm-1") {
		t.Fatalf("expected comm-1 assigned, got %v", updated.AssignedCommercialIDs)
	}
}

func TestRedispatchSingleChatEndpoint(t *testing.T) {
	store := newRoutingTestStore()
	handler, reg := setupRoutingHandler(t, store)

	queuedAt := routingFixedTime().Add(-time.Minute).Format(time.RFC3339)
	chat := model.ChatItem{
		PK:        model.ChatPK("tenant-1", "chat-1"),
		ChatID:    "chat-1",
		TenantID:  "tenant-1",
		Priority:  model.ChatPriorityNormal,
		Status:    model.ChatStatusQueued,
		CreatedAt: queuedAt,
		UpdatedAt: queuedAt,
		QueuedAt:  queuedAt,
	}
	chat = chat.WithParticipant(model.NewVisitorParticipant("visitor-1", "Visitor", queuedAt, true))
	store.chats[chat.PK] = chat

	reg.Add("comm-1", registry.RoleCommercial, nil, "socket-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/redispatch", nil)
	req.Header.Set("Authorization", commercialBearer(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(model.ChatStatusOpen) {
		t.Fatalf("expected chat reopened, got %s", resp.Status)
	}
	if len(resp.AssignedCommercialIDs) != 1 || resp.AssignedCommercialIDs[0] != "comm-1" {
		t.Fatalf("expected comm-1 assigned, got %v", resp.AssignedCommercialIDs)
	}
}

func TestChatEndpointsRejectWrongMethod(t *testing.T) {
	store := newRoutingTestStore()
	handler, _ := setupRoutingHandler(t, store)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/chats/chat-1", nil)
	req.Header.Set("Authorization", commercialBearer(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}
