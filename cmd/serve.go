package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/document"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/monitoring"
	"github.com/sells-group/contract-cli/internal/store"
)

const (
	// maxUploadBytes caps request bodies on POST /extract.
	maxUploadBytes = 32 << 20
	// backgroundRunTimeout bounds an accepted run, including the drain on
	// shutdown.
	backgroundRunTimeout = 10 * time.Minute
)

var (
	servePort   int
	serveDryRun bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, envOptions{Mode: "serve", DryRun: serveDryRun})
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		s := newServer(ctx, env)

		if cfg.Monitoring.WebhookURL != "" {
			collector := monitoring.NewCollector(env.Store, env.Costs, env.Model)
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		s.wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "use canned completions instead of calling Claude")
	rootCmd.AddCommand(serveCmd)
}

// server exposes the pipeline over HTTP. Runs accepted asynchronously take
// their values from baseCtx but not its cancellation, so shutdown drains
// them instead of aborting them.
type server struct {
	env     *pipelineEnv
	baseCtx context.Context
	wg      sync.WaitGroup
}

func newServer(ctx context.Context, env *pipelineEnv) *server {
	return &server{env: env, baseCtx: ctx}
}

// wait blocks until background runs finish.
func (s *server) wait() {
	s.wg.Wait()
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/extract", s.handleExtract)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/fields", s.handleListFields)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractRequest is the JSON body of POST /extract.
type extractRequest struct {
	FileName string `json:"file_name"`
	Text     string `json:"text"`
}

// handleExtract accepts either a multipart upload (field "file") or a JSON
// body with raw text. With ?wait=true the result is returned inline;
// otherwise the run is queued and 202 is returned with its ID.
func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	doc, err := s.readDocument(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	run, err := s.env.Store.CreateRun(r.Context(), doc.FileName)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		result, err := s.env.execute(r.Context(), run.ID, doc)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run_id": run.ID, "result": result})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.baseCtx), backgroundRunTimeout)
		defer cancel()
		if _, err := s.env.execute(ctx, run.ID, doc); err != nil {
			zap.L().Error("async extraction failed",
				zap.String("run_id", run.ID),
				zap.String("file", doc.FileName),
				zap.Error(err),
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"run_id": run.ID,
	})
}

func (s *server) readDocument(r *http.Request) (model.RawDocument, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return model.RawDocument{}, eris.Wrap(err, "invalid multipart body")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return model.RawDocument{}, eris.New("file is required")
		}
		defer file.Close() //nolint:errcheck
		return s.env.Loader.LoadReader(r.Context(), header.Filename, file)
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.RawDocument{}, eris.New("invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return model.RawDocument{}, eris.New("text is required")
	}
	if req.FileName == "" {
		req.FileName = "upload.txt"
	}
	return document.FromText(req.FileName, req.Text), nil
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.RunFilter{Status: model.RunStatus(q.Get("status"))}
	if v := q.Get("review"); v != "" {
		review, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, eris.New("review must be true or false"))
			return
		}
		filter.RequiresReview = &review
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	runs, err := s.env.Store.ListRuns(r.Context(), filter)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.env.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleListFields(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.env.Store.GetRun(r.Context(), id); err != nil {
		writeStoreErr(w, err)
		return
	}
	fields, err := s.env.Store.ListFields(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if fields == nil {
		fields = []model.ExtractedField{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

func writeStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, http.StatusNotFound, eris.New("run not found"))
		return
	}
	writeErr(w, http.StatusInternalServerError, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
