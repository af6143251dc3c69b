package main

import (
	"net/http"
	"strings"
)

// checkAuth accepts a bearer token from the Authorization header or from
// the token query parameter (EventSource and browser websocket clients
// cannot set headers). An empty configured token disables auth.
func checkAuth(r *http.Request, token string) bool {
	if token == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == token {
		return true
	}

	return r.URL.Query().Get("token") == token
}
