package runtime

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewBaseRouterWithReady returns a router serving /healthz and /readyz. Each check gets two
// seconds; any failure turns /readyz into a 503 listing every check result.
func NewBaseRouterWithReady(checks ...ReadyCheck) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		res := readiness{Status: "ok", Checks: map[string]string{}}
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			name := check.Name
			if name == "" {
				name = "dependency"
			}
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				res.Status = "unavailable"
				res.Checks[name] = err.Error()
				continue
			}
			res.Checks[name] = "ok"
		}
		if res.Status != "ok" {
			render.Status(req, http.StatusServiceUnavailable)
		}
		render.JSON(w, req, res)
	})
	return r
}
