package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chat-routing-backend/internal/dto"
	internaljwt "chat-routing-backend/internal/jwt"
)

type UtilsEndpoints interface {
	HelloWorld(http.ResponseWriter, *http.Request) error
	Health(http.ResponseWriter, *http.Request) error
	VisitorToken(http.ResponseWriter, *http.Request) error
	RefreshToken(http.ResponseWriter, *http.Request) error
}

type utilsEndpoints struct{}

func NewUtilsEndpoints() UtilsEndpoints {
	return &utilsEndpoints{}
}

func (h *utilsEndpoints) HelloWorld(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Hello world"})
}

func (h *utilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VisitorToken issues a fresh visitor identity for the given tenant.
// Visitors have no account, so the user id is minted here; commercial
// tokens come from the tenant's own login flow.
func (h *utilsEndpoints) VisitorToken(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleVisitorToken,
	})
}

func (h *utilsEndpoints) RefreshToken(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleRefreshToken,
	})
}

func (h *utilsEndpoints) handleVisitorToken(w http.ResponseWriter, r *http.Request) error {
	var req dto.VisitorTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode visitor token request: %w", err),
		}
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "tenantId is required",
			ErrorLog:   fmt.Errorf("visitor token request without tenant id"),
		}
	}

	identity := internaljwt.Identity{
		UserID:   uuid.NewString(),
		TenantID: tenantID,
		Name:     strings.TrimSpace(req.Name),
	}
	tokens, err := internaljwt.CreateTokenWithRefresh(identity, internaljwt.RoleVisitor, 0)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to issue token",
			ErrorLog:   fmt.Errorf("create visitor token for tenant %s: %w", tenantID, err),
		}
	}

	return WriteJSON(w, http.StatusOK, tokens)
}

func (h *utilsEndpoints) handleRefreshToken(w http.ResponseWriter, r *http.Request) error {
	var req dto.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode refresh token request: %w", err),
		}
	}

	role := internaljwt.RoleVisitor
	if req.Role == "commercial" {
		role = internaljwt.RoleCommercial
	}

	accessToken, err := internaljwt.RefreshToken(req.RefreshToken, role)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("refresh token: %w", err),
		}
	}

	return WriteJSON(w, http.StatusOK, internaljwt.TokenResponse{AccessToken: accessToken})
}
