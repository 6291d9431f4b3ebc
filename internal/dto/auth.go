package dto

type VisitorTokenRequest struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name,omitempty"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
	Role         string `json:"role,omitempty"`
}
