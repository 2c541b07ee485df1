package routes

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/astro-identity/internal/http/v1/profile"
	"github.com/janisto/astro-identity/internal/http/v1/registration"
	"github.com/janisto/astro-identity/internal/platform/auth"
)

// IdentityService is everything the v1 handlers need from identity.Service.
type IdentityService interface {
	registration.Registerer
	profile.Service
}

// Register wires all v1 routes into the provided API.
func Register(api huma.API, verifier auth.Verifier, svc IdentityService) {
	prefix := apiPrefix(api)

	auth.RegisterScheme(api)
	api.UseMiddleware(auth.NewMiddleware(api, verifier))

	registration.Register(api, svc, prefix)
	profile.Register(api, svc, prefix)
}

// apiPrefix returns the path of the first OpenAPI server, e.g. "/v1".
func apiPrefix(api huma.API) string {
	for _, s := range api.OpenAPI().Servers {
		if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
			return u.Path
		}
	}
	return ""
}
