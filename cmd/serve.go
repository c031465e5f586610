package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/monitoring"
	"github.com/tenkay/filing-pipeline/internal/store"
)

// maxPageSize caps /v1/filings so a missing limit cannot dump the table.
const maxPageSize = 200

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector(env.Store)
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring),
				time.Duration(cfg.Monitoring.CheckIntervalSecs)*time.Second)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env.Store, collector, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the status API. Every route is read-only.
func buildRouter(st store.Store, collector *monitoring.Collector, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			snap, err := collector.Collect(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Get("/filings", func(w http.ResponseWriter, r *http.Request) {
			filter, err := parseFilingFilter(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			filings, err := st.ListFilings(r.Context(), filter)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if filings == nil {
				filings = []model.Filing{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"filings": filings, "count": len(filings)})
		})

		r.Get("/filings/{accession}", func(w http.ResponseWriter, r *http.Request) {
			f, err := st.GetFilingByAccession(r.Context(), chi.URLParam(r, "accession"))
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, f)
		})
	})

	return r
}

// parseFilingFilter reads status, ticker, type, limit and offset.
func parseFilingFilter(r *http.Request) (store.FilingFilter, error) {
	q := r.URL.Query()
	f := store.FilingFilter{
		Ticker:     strings.ToUpper(q.Get("ticker")),
		FilingType: model.FilingType(strings.ToUpper(q.Get("type"))),
		Limit:      50,
	}
	if s := q.Get("status"); s != "" {
		f.Status = model.FilingStatus(strings.ToLower(s))
		if !f.Status.Valid() {
			return f, eris.Errorf("unknown status %q", s)
		}
	}
	if f.FilingType != "" && f.FilingType != model.Filing10K && f.FilingType != model.Filing10Q {
		return f, eris.Errorf("unknown filing type %q", q.Get("type"))
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, eris.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	if f.Limit == 0 || f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
