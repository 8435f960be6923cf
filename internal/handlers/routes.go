package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the rate limited routes.
func RegisterRoutes(api huma.API, hello *HelloHandler) {
	// GET /hello - the route every client is counted against
	huma.Register(api, huma.Operation{
		OperationID: "hello",
		Method:      http.MethodGet,
		Path:        "/hello",
		Summary:     "Greeting",
		Description: "Returns a greeting. Subject to the per-client request limit.",
		Tags:        []string{"Demo"},
		Responses: map[string]*huma.Response{
			"429": {Description: "Too many requests from this client in the current window"},
			"503": {Description: "Rate limiting unavailable and the gate is failing closed"},
		},
	}, hello.Hello)
}
