package endpoints

import (
	"net/http"
	"strings"
)

func ExtractTokenFromHeaders(r *http.Request) string {
	const prefix = "Bearer "

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}
