package fitshttp

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/warwick-one-metre/superwasp-talon/server"
	"github.com/warwick-one-metre/superwasp-talon/server/middleware/locker"
)

// NewRouter mounts h under root with request logging and a lock guarding
// the mutating routes
func NewRouter(root string, h *HTTPWrapper, lock *locker.Locker) http.Handler {
	locker.Inject(h, lock)

	mux := chi.NewRouter()
	mux.Use(lock.Check)
	h.RT().Bind(mux)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount(server.SubMuxSanitize(root), mux)
	return r
}
