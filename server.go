package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"photoGeotagger/config"
	"photoGeotagger/metrics"
	"photoGeotagger/utils"
)

const version = "0.2.0"

type apiError struct {
	Error string `json:"error"`
}

type healthResp struct {
	Ok        bool      `json:"ok"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type scanReq struct {
	Reference string `json:"reference"`
	Targets   string `json:"targets"`
}

type scanResp struct {
	Started bool   `json:"started"`
	RunID   string `json:"runId"`
	Status  string `json:"status"`
}

type apiServer struct {
	// ctx bounds scans started over HTTP.
	ctx     context.Context
	conf    *config.Config
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func newRouter(s *apiServer) *mux.Router {
	dbFile := s.conf.Paths.Database

	r := mux.NewRouter()
	r.Use(handlers.RecoveryHandler(handlers.RecoveryLogger(s.log), handlers.PrintRecoveryStack(true)))
	r.Use(requestLogger(s.log))

	r.HandleFunc("/api/health", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", withDB(dbFile, handleListRuns)).Methods(http.MethodGet)
	r.HandleFunc("/api/records", withDB(dbFile, handleListRecords)).Methods(http.MethodGet)
	r.HandleFunc("/api/records/{id}", withDB(dbFile, handleGetRecord)).Methods(http.MethodGet)
	r.HandleFunc("/api/scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/api/scan/status", handleScanStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/clear", withDB(dbFile, func(w http.ResponseWriter, r *http.Request, db *DB) {
		if GetScanStatus().running() {
			writeJSON(w, http.StatusConflict, apiError{Error: errScanRunning.Error()})
			return
		}
		if err := db.clearDBTables(); err != nil {
			writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	})).Methods(http.MethodPost)
	// Serve target photos and screenshots
	r.HandleFunc("/api/files/{path:.*}", s.handleFile).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// StartServer serves the HTTP API until ctx is cancelled.
func StartServer(ctx context.Context, conf *config.Config, m *metrics.Metrics, log logrus.FieldLogger) error {
	s := &apiServer{ctx: ctx, conf: conf, metrics: m, log: log}

	cors := handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "Accept"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}),
	)

	srv := &http.Server{
		Addr:              conf.Server.Addr,
		Handler:           cors(newRouter(s)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go utils.Quit(ctx, "HTTP API", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}, log)

	log.WithField("addr", conf.Server.Addr).Info("serving HTTP API")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("request")
		})
	}
}

func handleScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetScanStatus())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{Ok: true, Version: version, Timestamp: time.Now()})
}

func withDB(dbFile string, next func(http.ResponseWriter, *http.Request, *DB)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db, err := openAndInitDB(dbFile)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
			return
		}
		defer db.Close()
		next(w, r, db)
	}
}

func handleListRuns(w http.ResponseWriter, r *http.Request, db *DB) {
	offset, limit := parsePage(r)
	rows, err := db.listRuns(offset, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func handleListRecords(w http.ResponseWriter, r *http.Request, db *DB) {
	offset, limit := parsePage(r)
	rows, err := db.listRecords(r.URL.Query().Get("run"), offset, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func handleGetRecord(w http.ResponseWriter, r *http.Request, db *DB) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid id"})
		return
	}
	row, err := db.getRecordByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	if row == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleScan starts a batch in the background. Directory overrides must lie
// within the configured reference and target roots. Manual entry is never
// offered over HTTP since nobody sits at the console.
func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
			return
		}
	}

	conf := *s.conf
	var err error
	if conf.Paths.Reference, err = scopedDir(s.conf.Paths.Reference, req.Reference); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "reference: " + err.Error()})
		return
	}
	if conf.Paths.Targets, err = scopedDir(s.conf.Paths.Targets, req.Targets); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "targets: " + err.Error()})
		return
	}
	pc := ProcessingConfig{Conf: &conf, Landmarks: conf.Fallback.Landmarks}

	runID := uuid.NewString()
	if err := scanStatus.begin(runID); err != nil {
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
		return
	}

	var rec metrics.Recorder = metrics.Noop{}
	if s.metrics != nil {
		rec = s.metrics
	}
	go func() {
		if _, err := runScan(s.ctx, pc, runID, s.log, rec); err != nil {
			s.log.WithField("run", runID).WithError(err).Error("scan failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, scanResp{Started: true, RunID: runID, Status: "started"})
}

var errOutsideRoot = errors.New("directory outside the configured root")

// scopedDir resolves override against root. Relative overrides are taken
// from root; the result must be root itself or below it.
func scopedDir(root, override string) (string, error) {
	if override == "" {
		return root, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	p := override
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return p, nil
}

func parsePage(r *http.Request) (int64, int64) {
	q := r.URL.Query()
	var (
		offset int64 = 0
		limit  int64 = 50
	)
	if s := q.Get("offset"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v >= 0 {
			offset = v
		}
	}
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	return offset, limit
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleFile serves a file from the target or screenshot directory. The
// first path segment names the directory: "photos/x.jpg" or
// "screenshot/x.png" as they appear in records.
func (s *apiServer) handleFile(w http.ResponseWriter, r *http.Request) {
	filePath := mux.Vars(r)["path"]
	if filePath == "" {
		http.Error(w, "file path required", http.StatusBadRequest)
		return
	}
	decodedPath, err := url.PathUnescape(filePath)
	if err != nil {
		http.Error(w, "invalid file path", http.StatusBadRequest)
		return
	}

	root, rest := s.resolveRoot(decodedPath)
	if root == "" {
		http.Error(w, "unknown directory", http.StatusNotFound)
		return
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		http.Error(w, "invalid directory", http.StatusInternalServerError)
		return
	}
	absFilePath, err := filepath.Abs(filepath.Join(absRoot, filepath.FromSlash(rest)))
	if err != nil {
		http.Error(w, "invalid file path", http.StatusBadRequest)
		return
	}
	if rel, err := filepath.Rel(absRoot, absFilePath); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	info, err := os.Stat(absFilePath)
	if err != nil || info.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	ext := strings.ToLower(filepath.Ext(absFilePath))
	switch ext {
	case ".jpg", ".jpeg":
		w.Header().Set("Content-Type", "image/jpeg")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".gif":
		w.Header().Set("Content-Type", "image/gif")
	case ".bmp":
		w.Header().Set("Content-Type", "image/bmp")
	case ".tif", ".tiff":
		w.Header().Set("Content-Type", "image/tiff")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, absFilePath)
}

// resolveRoot maps the first segment of p to a configured directory: the
// web prefix to the targets, the screenshot directory's name to itself.
func (s *apiServer) resolveRoot(p string) (root, rest string) {
	p = strings.TrimPrefix(p, "/")
	first, rest, _ := strings.Cut(p, "/")
	paths := s.conf.Paths

	webPrefix := strings.Trim(paths.WebPrefix, "/")
	if webPrefix == "" {
		webPrefix = filepath.Base(paths.Targets)
	}
	switch {
	case first == webPrefix:
		return paths.Targets, rest
	case paths.Screenshots != "" && first == filepath.Base(paths.Screenshots):
		return paths.Screenshots, rest
	}
	return "", ""
}
