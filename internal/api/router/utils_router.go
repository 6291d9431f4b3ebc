package router

import (
	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/endpoints"
	"net/http"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints()
		mux.HandleFunc(prefix+"/hello-world", s.MakeHTTPHandleFunc(utilsEndpoints.HelloWorld))
		mux.HandleFunc(prefix+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
		mux.HandleFunc(prefix+"/auth/visitor-token", s.MakeHTTPHandleFunc(utilsEndpoints.VisitorToken))
		mux.HandleFunc(prefix+"/auth/refresh", s.MakeHTTPHandleFunc(utilsEndpoints.RefreshToken))
	}
}
