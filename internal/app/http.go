package app

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inkwash/internal/purge"
	"inkwash/pkg/api"
)

// startHTTP builds the handler, starts the HTTP server in a goroutine and
// returns a channel carrying any fatal server error.
func (a *App) startHTTP(ctx context.Context) (<-chan error, error) {
	apiSrv, err := api.NewServer(ctx, a.st, a.cfg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", apiSrv.Router())
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())

	a.srv = &http.Server{Addr: a.addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh, nil
}

func purgeStart(ctx context.Context, a *App) (context.CancelFunc, error) {
	if !a.cfg.Sweep.Enabled {
		return func() {}, nil
	}
	return purge.Start(ctx, a.st, purge.Options{
		Cron:   a.cfg.Sweep.Cron,
		MaxAge: a.cfg.Canvas.FadeDuration.Duration(),
	})
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !a.st.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + a.version + `"}`))
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
