package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/usecase-executor/pkg/execution"
	"github.com/morezero/usecase-executor/pkg/httpapi"
)

// HealthChecks reports the state of each dependency. Database is nil when
// the executor runs without one.
type HealthChecks struct {
	Comms    bool  `json:"comms"`
	Database *bool `json:"database,omitempty"`
}

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// HealthFunc produces the current health.
type HealthFunc func(ctx context.Context) *HealthOutput

// newHealthFunc checks the COMMS connection and, when pool is set, pings
// the database.
func newHealthFunc(nc *comms.Conn, pool *pgxpool.Pool) HealthFunc {
	return func(ctx context.Context) *HealthOutput {
		h := &HealthOutput{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
		h.Checks.Comms = nc != nil && nc.IsConnected()
		if !h.Checks.Comms {
			h.Status = "unhealthy"
		}
		if pool != nil {
			ok := pool.Ping(ctx) == nil
			h.Checks.Database = &ok
			if !ok {
				h.Status = "unhealthy"
			}
		}
		return h
	}
}

// Catalog lists what an executor can run.
type Catalog struct {
	UseCases           []string `json:"useCases"`
	Contexts           []string `json:"contexts"`
	DefaultContext     string   `json:"defaultContext"`
	InputProcessors    []string `json:"inputProcessors"`
	ResponseProcessors []string `json:"responseProcessors"`
}

// NewCatalog describes e.
func NewCatalog(e *execution.Executor) *Catalog {
	return &Catalog{
		UseCases:           e.UseCases(),
		Contexts:           e.Contexts().Contexts(),
		DefaultContext:     e.Contexts().DefaultContextName(),
		InputProcessors:    e.InputProcessors(),
		ResponseProcessors: e.ResponseProcessors(),
	}
}

// buildMux wires /health, /ready, the /usecases catalog and the use-case
// handler under /usecases/.
func buildMux(e *execution.Executor, httpContext string, health HealthFunc, healthTimeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		h := health(healthCtx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/usecases", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(NewCatalog(e))
	})

	api := httpapi.NewHandler(e, httpapi.Opts{Prefix: httpapi.DefaultPrefix, Context: httpContext})
	mux.Handle(api.Prefix(), api)
	return mux
}
