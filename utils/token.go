package utils

import "github.com/google/uuid"

// CreateToken returns an opaque random token, two uuids long. Used as the
// raw refresh token value stored in Redis.
func CreateToken() string {
	return uuid.NewString() + uuid.NewString()
}
