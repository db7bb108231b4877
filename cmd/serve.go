package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/holdings-etl/internal/etl"
	"github.com/sells-group/holdings-etl/internal/gateway"
	"github.com/sells-group/holdings-etl/internal/monitoring"
)

var servePort int

// trigger starts one ingestion run.
type trigger interface {
	Run(ctx context.Context) (*etl.Result, error)
}

// routerDeps holds what buildRouter mounts. Nil members leave their routes
// unmounted.
type routerDeps struct {
	Runner         trigger
	Gateway        *gateway.Gateway
	AdminToken     string
	AllowedOrigins []string
	Ping           func(ctx context.Context) error
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the refresh trigger, health check and SQL gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deps := routerDeps{
			Runner:         newRunner(cfg, newFetcher(cfg), st),
			AdminToken:     cfg.Gateway.AdminToken,
			AllowedOrigins: cfg.Gateway.AllowedOrigins,
			Ping:           st.Ping,
		}
		if cfg.Gateway.AdminToken != "" {
			deps.Gateway = gateway.New(st.Pool(), gateway.Options{
				MaxRows:      cfg.Gateway.MaxRows,
				MaxSQLLength: cfg.Gateway.MaxSQLLength,
			})
		} else {
			zap.L().Info("gateway.admin_token not set, SQL gateway disabled")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(ctx, deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		if cfg.Monitor.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st, cfg.Monitor.StaleAfter),
				monitoring.NewAlerter(cfg.Monitor),
				cfg.Monitor,
			)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter mounts the trigger on / and /refresh for any method. Runs use
// baseCtx so a dropped client connection does not abort ingestion.
func buildRouter(baseCtx context.Context, deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ping != nil {
			if err := deps.Ping(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Runner != nil {
		h := triggerHandler(baseCtx, deps.Runner)
		r.HandleFunc("/", h)
		r.HandleFunc("/refresh", h)
	}

	if deps.Gateway != nil && deps.AdminToken != "" {
		corsMW := cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"authorization", gateway.AdminTokenHeader, "apikey", "content-type"},
			MaxAge:         300,
		})
		r.With(corsMW).Post("/sql", deps.Gateway.Handler(deps.AdminToken))
		r.With(corsMW).Options("/sql", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	return r
}

func triggerHandler(baseCtx context.Context, runner trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		res, err := runner.Run(baseCtx)
		switch {
		case errors.Is(err, etl.ErrRunInProgress):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "run already in progress"})
		case err != nil:
			zap.L().Error("run could not be recorded", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create etl run", "detail": err.Error()})
		default:
			writeJSON(w, http.StatusOK, res)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
