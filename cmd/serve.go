package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/resilience"
	"github.com/flipscout/appraisal-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the appraisal API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/v1/analyses", func(w http.ResponseWriter, req *http.Request) {
			var body model.AnalysisRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}

			result, err := env.Engine.Analyze(req.Context(), body)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Get("/v1/analyses/{id}", func(w http.ResponseWriter, req *http.Request) {
			result, err := env.Store.GetAnalysis(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "analysis not found"})
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Get("/v1/analyses", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			filter := store.AnalysisFilter{
				Category: q.Get("category"),
				Decision: model.Decision(q.Get("decision")),
			}
			fmt.Sscanf(q.Get("limit"), "%d", &filter.Limit)
			fmt.Sscanf(q.Get("offset"), "%d", &filter.Offset)

			results, err := env.Store.ListAnalyses(req.Context(), filter)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"analyses": results})
		})

		r.Get("/v1/scorecards", func(w http.ResponseWriter, req *http.Request) {
			week, err := time.Parse("2006-01-02", req.URL.Query().Get("week"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week must be YYYY-MM-DD"})
				return
			}
			cards, err := env.Store.ListScorecards(req.Context(), week)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"scorecards": cards})
		})

		r.Get("/v1/dlq", func(w http.ResponseWriter, req *http.Request) {
			entries := env.DLQ.List(resilience.DLQFilter{ErrorType: req.URL.Query().Get("error_type")})
			writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
		})

		// Background jobs: weekly scorecard aggregation and DLQ retries.
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Benchmark.AggregateCron, func() {
			weekStart := previousWeekStart(time.Now().UTC())
			if err := aggregateAndSave(ctx, env.Store, weekStart); err != nil {
				zap.L().Error("weekly aggregation failed", zap.Error(err))
			}
		}); err != nil {
			return eris.Wrap(err, "schedule aggregation")
		}
		if _, err := scheduler.AddFunc("*/5 * * * *", func() {
			retryDLQ(ctx, env)
		}); err != nil {
			return eris.Wrap(err, "schedule dlq retries")
		}
		scheduler.Start()
		defer scheduler.Stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// retryDLQ re-runs due dead-letter entries. A retry that produces a real
// consensus clears the entry; another failed run is recorded against it.
func retryDLQ(ctx context.Context, env *appEnv) {
	for _, entry := range env.DLQ.Due() {
		result, err := env.Engine.Analyze(ctx, entry.Request)
		if err != nil {
			env.DLQ.MarkFailed(entry.ID, err)
			continue
		}
		if result.Consensus.Quality == model.QualityFailed {
			env.DLQ.MarkFailed(entry.ID, eris.New("retry produced no votes"))
			continue
		}
		env.DLQ.Remove(entry.ID)
		zap.L().Info("dlq retry succeeded",
			zap.String("id", entry.Request.ID),
			zap.String("item", entry.Request.ItemName))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
