package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
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

	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/store"
)

var servePort int

const maxUploadBytes = 64 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document upload and review server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background recovery sweep.
		go env.Sweeper.Run(ctx)

		r := buildRouter(env, cfg.Server.AllowedOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter assembles the upload/review routes over an initialized
// pipeline environment.
func buildRouter(env *pipelineEnv, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ingestions", handleUpload(env))
	r.Get("/ingestions", handleListIngestions(env))
	r.Get("/ingestions/{id}", handleGetIngestion(env))
	r.Post("/ingestions/{id}/retry", handleRetry(env))
	r.Post("/ingestions/{id}/cancel", handleCancel(env))
	r.Get("/sets/{key}", handleGetSet(env))
	r.Get("/sets/{key}/discrepancies", handleListDiscrepancies(env))
	r.Post("/discrepancies/{id}/resolve", handleResolve(env))

	return r
}

func handleUpload(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			httpError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			httpError(w, http.StatusBadRequest, "read upload")
			return
		}
		if len(data) > maxUploadBytes {
			httpError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}

		rec, err := env.Controller.Ingest(r.Context(), header.Filename, r.FormValue("set_key"), data)
		if err != nil {
			zap.L().Error("upload processing failed", zap.String("filename", header.Filename), zap.Error(err))
			httpError(w, http.StatusInternalServerError, "processing failed")
			return
		}
		respondJSON(w, http.StatusCreated, rec)
	}
}

func handleListIngestions(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.IngestionFilter{
			Status: model.IngestionStatus(r.URL.Query().Get("status")),
			SetKey: r.URL.Query().Get("set"),
			Limit:  queryInt(r, "limit", 100),
			Offset: queryInt(r, "offset", 0),
		}
		recs, err := env.Store.ListIngestions(r.Context(), filter)
		if err != nil {
			zap.L().Error("list ingestions failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "list failed")
			return
		}
		respondJSON(w, http.StatusOK, recs)
	}
}

func handleGetIngestion(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := env.Store.GetIngestion(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

func handleRetry(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := env.Controller.Rerun(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		rec, err := env.Store.GetIngestion(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

func handleCancel(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := env.Store.GetIngestion(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		env.Controller.Cancel(id)
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "id": id})
	}
}

func handleGetSet(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := env.Store.GetSet(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, set)
	}
}

func handleListDiscrepancies(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := env.Store.GetSet(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		status := model.DiscrepancyStatus(r.URL.Query().Get("status"))
		discs, err := env.Store.ListDiscrepancies(r.Context(), set.ID, status)
		if err != nil {
			zap.L().Error("list discrepancies failed", zap.String("set_key", set.SetKey), zap.Error(err))
			httpError(w, http.StatusInternalServerError, "list failed")
			return
		}
		respondJSON(w, http.StatusOK, discs)
	}
}

func handleResolve(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Notes string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := env.Store.ResolveDiscrepancy(r.Context(), chi.URLParam(r, "id"), req.Notes); err != nil {
			writeStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("store operation failed", zap.Error(err))
	httpError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
