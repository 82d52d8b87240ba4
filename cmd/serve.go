package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the matching engine over HTTP",
	Long: `Serves the engine operations for the external scheduler and the admin
review surface: batch sweeps, incremental matching, group inspection and
unlink. Unlink routes through the same group-assignment write path the
matchers use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE"},
		}))

		writeJSON := func(w http.ResponseWriter, status int, v any) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(v)
		}
		writeErr := func(w http.ResponseWriter, status int, err error) {
			writeJSON(w, status, map[string]string{"error": err.Error()})
		}

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/match/run", func(w http.ResponseWriter, req *http.Request) {
			report, err := engine.Run(req.Context())
			if err != nil {
				zap.L().Error("batch sweep failed", zap.Error(err))
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Post("/api/match/exact", func(w http.ResponseWriter, req *http.Request) {
			report, err := engine.RunExactMatching(req.Context())
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Post("/api/match/fuzzy", func(w http.ResponseWriter, req *http.Request) {
			report, err := engine.RunFuzzyMatching(req.Context())
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Post("/api/products/{id}/match", func(w http.ResponseWriter, req *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
			if err != nil {
				writeErr(w, http.StatusBadRequest, err)
				return
			}
			result, review, err := engine.MatchProduct(req.Context(), id)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, struct {
				Result *model.MatchResult      `json:"result"`
				Review []model.ReviewCandidate `json:"review,omitempty"`
			}{result, review})
		})

		r.Get("/api/groups/{id}", func(w http.ResponseWriter, req *http.Request) {
			members, err := st.ProductsByGroup(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			if len(members) == 0 {
				writeErr(w, http.StatusNotFound, fmt.Errorf("group not found"))
				return
			}
			writeJSON(w, http.StatusOK, members)
		})

		r.Delete("/api/groups/{id}", func(w http.ResponseWriter, req *http.Request) {
			n, err := st.UnlinkGroup(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int64{"unlinked": n})
		})

		r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
			stats, err := st.Stats(req.Context())
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("http server listening", zap.Int("port", port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			zap.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
