package middleware

import (
	"net/http"
	"strings"

	iternal_jwt "chat-routing-backend/internal/jwt"
)

func ValidateJWTMiddleware(role iternal_jwt.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")

			if !strings.HasPrefix(tokenString, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString = tokenString[len("Bearer "):]

			if _, err := iternal_jwt.ParseToken(tokenString, role); err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

func ValidateMultipleJWTMiddleware(roles ...iternal_jwt.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if !strings.HasPrefix(tokenString, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString = tokenString[len("Bearer "):]

			var err error
			for _, role := range roles {
				if _, err = iternal_jwt.ParseToken(tokenString, role); err == nil {
					break
				}
			}

			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

var ValidateVisitorJWT = ValidateJWTMiddleware(iternal_jwt.RoleVisitor)
var ValidateCommercialJWT = ValidateJWTMiddleware(iternal_jwt.RoleCommercial)
var ValidateAnyJWT = ValidateMultipleJWTMiddleware(iternal_jwt.RoleVisitor, iternal_jwt.RoleCommercial)
