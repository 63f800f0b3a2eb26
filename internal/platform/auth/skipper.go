package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication. These are
// infrastructure endpoints that load balancers and monitors must be able to
// probe without credentials.
var publicPaths = map[string]bool{
	"/health":        true,
	"/ingest/health": true,
}

// AuthSkipper returns true for requests whose path should skip
// authentication. Pass this as the Skipper on APIKeyConfig or JWTConfig so
// health checks remain reachable without a bearer token.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path is a public infrastructure
// endpoint that should bypass auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
