package jwt

type Role int

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Identity is the verified content of an access token: who connects, for
// which tenant, and (for commercials) the skill tags routing matches on.
type Identity struct {
	UserID   string   `json:"id"`
	TenantID string   `json:"tenantId"`
	Name     string   `json:"name,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}
