package auth

// publicPaths lists infrastructure endpoints that bypass authentication and
// the per-client rate limiter.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// IsPublicPath reports whether the given route is a public infrastructure endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
