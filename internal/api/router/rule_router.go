package router

import (
	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/endpoints"
	"chat-routing-backend/internal/api/middleware"
	"chat-routing-backend/internal/service/assignment"
	"net/http"
)

func RuleRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		store := assignment.NewRuleStore(s.Database())
		ruleEndpoints := endpoints.NewRuleEndpoints(store)

		mux.HandleFunc(prefix+"/routing-rules", s.MakeHTTPHandleFunc(ruleEndpoints.RoutingRules, middleware.ValidateCommercialJWT))
	}
}
