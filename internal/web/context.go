package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

// requestContext carries the caller's address into the service, for import
// and mutation logs. RemoteAddr is already the client IP after TrustedRealIP.
func requestContext(r *http.Request) context.Context {
	return core.ContextWithClientIP(r.Context(), r.RemoteAddr)
}
