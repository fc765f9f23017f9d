package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sf-events-map/venuegeo/internal/model"
	"github.com/sf-events-map/venuegeo/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operator API for browsing the venue cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			return srv.Shutdown(cmd.Context())
		})

		return g.Wait()
	},
}

// newRouter builds the operator API. Read-only except for the recheck
// endpoint, which mirrors the recheck command.
func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/venues", func(w http.ResponseWriter, req *http.Request) {
		filter := store.VenueFilter{
			Status: model.Status(req.URL.Query().Get("status")),
		}
		if limit := req.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			filter.Limit = n
		}
		entries, err := st.ListVenues(req.Context(), filter)
		if err != nil {
			serverError(w, "list venues", err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/api/venues/counts", func(w http.ResponseWriter, req *http.Request) {
		counts, err := st.CountByStatus(req.Context())
		if err != nil {
			serverError(w, "count venues", err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})

	r.Post("/api/venues/recheck", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Keys []model.VenueKey `json:"keys"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Keys) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keys is required"})
			return
		}
		for _, key := range body.Keys {
			if err := st.MarkForRetry(req.Context(), key); err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{"marked": len(body.Keys)})
	})

	r.Get("/api/batches", func(w http.ResponseWriter, req *http.Request) {
		batches, err := st.ListBatches(req.Context(), 20)
		if err != nil {
			serverError(w, "list batches", err)
			return
		}
		writeJSON(w, http.StatusOK, batches)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serverError(w http.ResponseWriter, op string, err error) {
	zap.L().Error(op, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
