package router

import (
	"chat-routing-backend/internal/api"
	"net/http"
)

// WebsocketRoutes bypasses MakeHTTPHandleFunc: the upgrade handshake owns the
// response writer and cannot go through the request queue.
func WebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		mux.HandleFunc(prefix+"/ws", func(w http.ResponseWriter, r *http.Request) {
			s.Handler().ServeWS(w, r)
		})
	}
}
