package router

import (
	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/endpoints"
	"chat-routing-backend/internal/api/middleware"
	chatservice "chat-routing-backend/internal/service/chat"
	"chat-routing-backend/internal/service/presence"
	"net/http"
)

// ChatRoutes takes the services rather than building them from the server's
// database: the chat service shares its registry, scheduler and notifier with
// the websocket handler, so the caller owns those singletons.
func ChatRoutes(prefix string, chats *chatservice.Service, presenceSvc *presence.Service) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		chatEndpoints := endpoints.NewChatEndpoints(chats, presenceSvc, prefix)

		mux.HandleFunc(prefix+"/chats", s.MakeHTTPHandleFunc(chatEndpoints.Chats, middleware.ValidateVisitorJWT))
		mux.HandleFunc(prefix+"/chats/redispatch", s.MakeHTTPHandleFunc(chatEndpoints.Redispatch, middleware.ValidateCommercialJWT))
		mux.HandleFunc(prefix+"/chats/", s.MakeHTTPHandleFunc(chatEndpoints.ChatByID, middleware.ValidateAnyJWT))
	}
}
