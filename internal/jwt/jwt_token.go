package jwt

import (
	"chat-routing-backend/utils"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt"
)

func appendRoleChar(token string, role Role) string {
	switch role {
	case RoleVisitor:
		return token + "1"
	case RoleCommercial:
		return token + "2"
	}
	return token
}

func expectedRoleChar(role Role) string {
	switch role {
	case RoleVisitor:
		return "1"
	case RoleCommercial:
		return "2"
	}
	return ""
}

func CreateToken(identity Identity, role Role, validUntil int64) (string, error) {
	secret, ok := RoleSecrets[role]
	if !ok {
		return "", fmt.Errorf("invalid role specified")
	}

	if validUntil == 0 {
		now := time.Now()
		validUntil = now.Add(time.Minute * 15).Unix()
	}

	claims := jwt.MapClaims{
		"id":       identity.UserID,
		"tenantId": identity.TenantID,
		"name":     identity.Name,
		"tags":     identity.Tags,
		"exp":      validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return appendRoleChar(tokenString, role), nil
}

func CreateTokenWithRefresh(identity Identity, role Role, validUntil int64) (TokenResponse, error) {
	accessToken, err := CreateToken(identity, role, validUntil)
	if err != nil {
		return TokenResponse{}, err
	}

	refreshTokenRaw := utils.CreateToken()
	refreshToken := appendRoleChar(refreshTokenRaw, role)

	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return TokenResponse{}, err
	}

	err = RedisClient.Set(context.Background(), refreshTokenRaw, identityJSON, RefreshTokenTTL).Err()
	if err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Parse token (access) with role char validation
func ParseToken(tokenString string, role Role) (Identity, error) {
	if len(tokenString) == 0 {
		return Identity{}, fmt.Errorf("token string is empty")
	}

	if tokenString[len(tokenString)-1:] != expectedRoleChar(role) {
		return Identity{}, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1] // Remove role char

	secret, ok := RoleSecrets[role]
	if !ok {
		return Identity{}, fmt.Errorf("invalid role specified")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return Identity{}, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("claims of unauthorized type")
	}

	return identityFromClaims(claims)
}

func identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	identity := Identity{}

	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return Identity{}, fmt.Errorf("token carries no user id")
	}
	identity.UserID = id

	tenantID, ok := claims["tenantId"].(string)
	if !ok || tenantID == "" {
		return Identity{}, fmt.Errorf("token carries no tenant id")
	}
	identity.TenantID = tenantID

	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if rawTags, ok := claims["tags"].([]interface{}); ok {
		for _, raw := range rawTags {
			if tag, ok := raw.(string); ok {
				identity.Tags = append(identity.Tags, tag)
			}
		}
	}
	return identity, nil
}

func RefreshToken(refreshToken string, role Role) (string, error) {
	if len(refreshToken) == 0 {
		return "", fmt.Errorf("refresh token is empty")
	}
	if refreshToken[len(refreshToken)-1:] != expectedRoleChar(role) {
		return "", fmt.Errorf("invalid role character in refresh token")
	}
	refreshTokenRaw := refreshToken[:len(refreshToken)-1]

	val, err := RedisClient.Get(context.Background(), refreshTokenRaw).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("invalid refresh token")
	} else if err != nil {
		return "", err
	}

	var identity Identity
	if err := json.Unmarshal([]byte(val), &identity); err != nil {
		return "", fmt.Errorf("invalid token data")
	}

	err = RedisClient.Expire(context.Background(), refreshTokenRaw, RefreshTokenTTL).Err()
	if err != nil {
		return "", fmt.Errorf("failed to update refresh token expiration: %v", err)
	}

	return CreateToken(identity, role, 0)
}
