package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"citycal/utils"
)

// Pinger is satisfied by the Mongo and Redis handles.
type Pinger interface {
	HealthPing(ctx context.Context) error
}

// Health reports 200 when every registered dependency answers a ping.
type Health struct {
	checks map[string]Pinger
}

func NewHealth() *Health {
	return &Health{checks: make(map[string]Pinger)}
}

func (h *Health) Register(name string, p Pinger) {
	h.checks[name] = p
}

func (h *Health) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, p := range h.checks {
		if err := p.HealthPing(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			status[name] = "down"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	utils.RespondWithJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": status})
}
