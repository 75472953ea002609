package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"photoGeotagger/config"
	"photoGeotagger/geotag"
	"photoGeotagger/locate"
	"photoGeotagger/metrics"
	"photoGeotagger/model"
	"photoGeotagger/mongo"
	"photoGeotagger/publish"
	"photoGeotagger/reference"
	"photoGeotagger/timestamp"
)

var errScanRunning = errors.New("a scan is already running")

// ProcessingConfig holds configuration for one batch run
type ProcessingConfig struct {
	Conf      *config.Config
	Landmarks bool
	Manual    bool
	// Operator console for manual entry.
	Input  io.Reader
	Output io.Writer
}

type ScanStatus struct {
	Status      string    `json:"status"`      // idle, scanning, processing, completed, stopped, error
	RunID       string    `json:"runId"`       // Ledger id of the current or last run
	TotalFiles  int64     `json:"totalFiles"`  // Target photos found
	Processed   int64     `json:"processed"`   // Target photos handled so far
	Tagged      int64     `json:"tagged"`      // Photos that received coordinates
	Skipped     int64     `json:"skipped"`     // Photos without any location
	Failed      int64     `json:"failed"`      // Photos whose metadata write failed
	StartTime   time.Time `json:"startTime"`   // When the run started
	EndTime     time.Time `json:"endTime"`     // When the run ended (if finished)
	CurrentFile string    `json:"currentFile"` // Current photo being processed
	Error       string    `json:"error"`       // Error message if status is error
}

func (s ScanStatus) running() bool {
	return s.Status == "scanning" || s.Status == "processing"
}

// scanTracker guards the status the HTTP API reads while a batch runs. A nil
// tracker ignores updates.
type scanTracker struct {
	mu     sync.Mutex
	status ScanStatus
}

var scanStatus = &scanTracker{status: ScanStatus{Status: "idle"}}

func GetScanStatus() ScanStatus {
	return scanStatus.snapshot()
}

func (t *scanTracker) snapshot() ScanStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *scanTracker) begin(runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.running() {
		return errScanRunning
	}
	t.status = ScanStatus{Status: "scanning", RunID: runID, StartTime: time.Now()}
	return nil
}

func (t *scanTracker) setTotal(n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Status = "processing"
	t.status.TotalFiles = int64(n)
}

func (t *scanTracker) update(name, outcome string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Processed++
	t.status.CurrentFile = name
	switch outcome {
	case metrics.OutcomeTagged:
		t.status.Tagged++
	case metrics.OutcomeNoLocation:
		t.status.Skipped++
	default:
		t.status.Failed++
	}
}

func (t *scanTracker) finish(result RunResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.EndTime = time.Now()
	t.status.CurrentFile = ""
	switch {
	case err != nil:
		t.status.Status = "error"
		t.status.Error = err.Error()
	case result.Stopped:
		t.status.Status = "stopped"
	default:
		t.status.Status = "completed"
	}
}

// RecordSink receives every record as it is produced.
type RecordSink interface {
	SaveRecord(ctx context.Context, runID, provider string, rec model.PhotoRecord) error
}

// RunResult is what a batch produced.
type RunResult struct {
	RunID            string
	Records          []model.PhotoRecord
	ReferenceEntries int
	Total            int64
	Tagged           int64
	Skipped          int64
	Failed           int64
	// Stopped is set when the operator or a signal ended the batch early.
	Stopped bool
}

// Batch geotags every photo of a target directory, one at a time.
type Batch struct {
	TargetsDir     string
	ScreenshotsDir string
	WebPrefix      string
	Extensions     []string
	Locator        *locate.Chain
	Writer         *geotag.Writer
	Ledger         *DB
	Mirror         RecordSink
	Metrics        metrics.Recorder
	Status         *scanTracker
	Log            logrus.FieldLogger
}

// Run processes the target directory in listing order. A single photo's
// failure never ends the run; a stop request or cancellation ends it early
// without error, and a missing metadata writer aborts it with
// geotag.ErrWriterUnavailable.
func (b *Batch) Run(ctx context.Context, runID string) (RunResult, error) {
	result := RunResult{RunID: runID, Records: []model.PhotoRecord{}}
	if b.Metrics == nil {
		b.Metrics = metrics.Noop{}
	}

	names, err := reference.ListImages(b.TargetsDir, b.Extensions)
	if err != nil {
		return result, fmt.Errorf("list target directory %s: %w", b.TargetsDir, err)
	}
	b.Status.setTotal(len(names))
	b.Log.WithField("targets", len(names)).Info("processing target photos")

	for _, name := range names {
		rec, outcome, err := b.processTarget(ctx, runID, name)
		if err != nil {
			if errors.Is(err, geotag.ErrWriterUnavailable) {
				b.Metrics.IncTargets(metrics.OutcomeError)
				b.Status.update(name, metrics.OutcomeError)
				result.Total++
				result.Failed++
				return result, err
			}
			b.Log.WithField("file", name).WithError(err).Warn("stopping batch")
			result.Stopped = true
			break
		}

		b.Metrics.IncTargets(outcome)
		b.Status.update(name, outcome)
		result.Total++
		switch outcome {
		case metrics.OutcomeTagged:
			result.Tagged++
		case metrics.OutcomeNoLocation:
			result.Skipped++
		default:
			result.Failed++
		}
		if rec != nil {
			result.Records = append(result.Records, *rec)
		}
	}
	return result, nil
}

// processTarget returns a nil record for a photo without location. Errors are
// only returned for conditions that end the batch.
func (b *Batch) processTarget(ctx context.Context, runID, name string) (*model.PhotoRecord, string, error) {
	log := b.Log.WithField("file", name)
	srcPath := filepath.Join(b.TargetsDir, name)

	start := time.Now()
	found, err := b.Locator.Locate(ctx, locate.Target{Filename: name, Path: srcPath})
	b.Metrics.ObserveResolveDuration(time.Since(start))
	if err != nil {
		if errors.Is(err, locate.ErrNotFound) {
			log.WithError(err).Info("skipping: no corresponding GPS data found")
			return nil, metrics.OutcomeNoLocation, nil
		}
		return nil, metrics.OutcomeError, err
	}
	b.Metrics.IncProvider(found.Provider)

	outcome := metrics.OutcomeTagged
	finalPath, werr := b.Writer.WriteCoordinates(srcPath, found.Coordinate)
	if werr != nil {
		if errors.Is(werr, geotag.ErrWriterUnavailable) {
			return nil, metrics.OutcomeError, werr
		}
		// The photo is still published under its original name.
		outcome = metrics.OutcomeWriteFailed
	}

	finalName := filepath.Base(finalPath)
	rec := model.PhotoRecord{
		Lat:        found.Coordinate.Lat,
		Lon:        found.Coordinate.Lon,
		Img:        path.Join(b.WebPrefix, finalName),
		Title:      finalName,
		Screenshot: findScreenshot(b.ScreenshotsDir, finalName),
	}
	b.persist(ctx, runID, found.Provider, srcPath, finalPath, rec, werr)

	log.WithFields(logrus.Fields{
		"provider":   found.Provider,
		"coordinate": found.Coordinate.String(),
		"img":        rec.Img,
	}).Info("photo located")
	return &rec, outcome, nil
}

func (b *Batch) persist(ctx context.Context, runID, provider, srcPath, finalPath string, rec model.PhotoRecord, writeErr error) {
	log := b.Log.WithField("file", rec.Title)
	if b.Ledger != nil {
		meta := recordMetadata{
			Provider:  provider,
			Source:    filepath.Base(srcPath),
			Converted: finalPath != srcPath,
		}
		if writeErr != nil {
			meta.WriteErr = writeErr.Error()
		}
		_, err := b.Ledger.insertRecord(RecordRow{
			RunID:    runID,
			Record:   rec,
			Provider: provider,
			SrcPath:  srcPath,
			DestPath: finalPath,
			Metadata: BuildMetadataJSON(finalPath, meta),
		})
		if err != nil {
			log.WithError(err).Warn("failed to insert record into ledger")
		}
	}
	if b.Mirror != nil {
		if err := b.Mirror.SaveRecord(ctx, runID, provider, rec); err != nil {
			log.WithError(err).Warn("failed to mirror record")
		}
	}
}

// findScreenshot returns dir/<file> for the first visible file in dir whose
// name, without extension and ignoring case, equals the image's.
func findScreenshot(dir, imageName string) string {
	if dir == "" {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	want := strings.ToLower(strings.TrimSuffix(imageName, filepath.Ext(imageName)))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))) == want {
			return filepath.ToSlash(filepath.Join(dir, name))
		}
	}
	return ""
}

// fileProcessing runs one batch in the foreground.
func fileProcessing(ctx context.Context, pc ProcessingConfig, log logrus.FieldLogger, rec metrics.Recorder) (RunResult, error) {
	runID := uuid.NewString()
	if err := scanStatus.begin(runID); err != nil {
		return RunResult{RunID: runID}, err
	}
	return runScan(ctx, pc, runID, log, rec)
}

// runScan runs a batch whose slot in scanStatus was already taken.
func runScan(ctx context.Context, pc ProcessingConfig, runID string, log logrus.FieldLogger, rec metrics.Recorder) (RunResult, error) {
	result, err := runBatch(ctx, pc, runID, log.WithField("run", runID), rec)
	scanStatus.finish(result, err)
	return result, err
}

func runBatch(ctx context.Context, pc ProcessingConfig, runID string, log logrus.FieldLogger, rec metrics.Recorder) (RunResult, error) {
	conf := pc.Conf
	result := RunResult{RunID: runID}
	if rec == nil {
		rec = metrics.Noop{}
	}

	codec, err := timestamp.New(conf.TimestampConfig())
	if err != nil {
		return result, err
	}
	exts := conf.Resolver.Extensions
	if len(exts) == 0 {
		exts = reference.DefaultExtensions
	}

	db, err := initializeDB(conf.Paths.Database)
	if err != nil {
		return result, err
	}
	defer db.Close()

	run := RunRow{
		ID:           runID,
		Status:       "running",
		ReferenceDir: conf.Paths.Reference,
		TargetsDir:   conf.Paths.Targets,
		StartedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := db.insertRun(run); err != nil {
		return result, fmt.Errorf("failed to insert run: %w", err)
	}

	index := reference.BuildIndex(conf.Paths.Reference, codec, exts, log)
	rec.SetReferenceEntries(len(index))
	log.WithField("entries", len(index)).Info("reference index built")

	reader := reference.NewCachedReader(exifGPSReader{}, conf.CacheSizeMB(), rec)
	resolver := reference.NewResolver(codec, index, reader, reference.Options{MaxDelta: conf.Resolver.MaxDelta}, log)
	providers := []locate.Provider{locate.ReferenceProvider{Resolver: resolver}}

	if pc.Landmarks {
		detector, err := locate.NewVisionDetector(ctx, 1)
		if err != nil {
			log.WithError(err).Warn("landmark lookup unavailable")
		} else {
			defer detector.Close()
			providers = append(providers, locate.LandmarkProvider{Detector: detector})
		}
	}
	if pc.Manual {
		session := locate.OpenSession(pc.Input, pc.Output)
		defer session.Close()
		providers = append(providers, locate.ManualProvider{
			Session:   session,
			Previewer: previewer{dir: conf.Paths.Previews},
		})
	}

	var mirror RecordSink
	if conf.Mongo.URI != "" {
		store, err := mongo.Connect(ctx, conf.Mongo.URI, conf.Mongo.Database, conf.Mongo.Collection, log)
		if err != nil {
			log.WithError(err).Warn("mongo mirror disabled")
		} else {
			defer store.Close()
			mirror = store
		}
	}

	batch := &Batch{
		TargetsDir:     conf.Paths.Targets,
		ScreenshotsDir: conf.Paths.Screenshots,
		WebPrefix:      conf.Paths.WebPrefix,
		Extensions:     exts,
		Locator:        locate.NewChain(log, providers...),
		Writer:         geotag.NewWriter(geotag.JPEGTagWriter{}, conf.Writer.JPEGQuality, log),
		Ledger:         db,
		Mirror:         mirror,
		Metrics:        rec,
		Status:         scanStatus,
		Log:            log,
	}
	result, err = batch.Run(ctx, runID)
	result.ReferenceEntries = len(index)

	run.Status = "completed"
	switch {
	case err != nil:
		run.Status = "error"
		run.Error = err.Error()
	case result.Stopped:
		run.Status = "stopped"
	}
	run.ReferenceEntries = int64(result.ReferenceEntries)
	run.Total, run.Tagged, run.Skipped, run.Failed = result.Total, result.Tagged, result.Skipped, result.Failed
	if ferr := db.finishRun(run); ferr != nil {
		log.WithError(ferr).Warn("failed to finish run in ledger")
	}
	if err != nil {
		return result, err
	}

	if conf.Paths.Template != "" && conf.Paths.Output != "" {
		if err := publish.WriteHTML(conf.Paths.Template, conf.Paths.Output, result.Records); err != nil {
			return result, fmt.Errorf("publish %s: %w", conf.Paths.Output, err)
		}
		log.WithField("locations", len(result.Records)).Infof("created %s", conf.Paths.Output)
	}
	return result, nil
}

// initializeDB opens the ledger, creating its directory when needed.
func initializeDB(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := ensureDirectory(dir); err != nil {
			return nil, err
		}
	}
	db, err := openAndInitDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open/init database: %w", err)
	}
	return db, nil
}

// recoverLedger marks runs a crashed process left behind. It runs once at
// startup, before any scan can begin.
func recoverLedger(dbPath string, log logrus.FieldLogger) error {
	db, err := initializeDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	n, err := db.markInterruptedRuns()
	if err != nil {
		return fmt.Errorf("mark interrupted runs: %w", err)
	}
	if n > 0 {
		log.WithField("runs", n).Warn("marked interrupted runs as aborted")
	}
	return nil
}

// ensureDirectory creates a directory if it doesn't exist
func ensureDirectory(dirPath string) error {
	if err := os.MkdirAll(dirPath, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// printRecords writes one block per record, as shown by -print.
func printRecords(w io.Writer, records []model.PhotoRecord) {
	for _, r := range records {
		fmt.Fprintf(w, `
----------------------------------------
PhotoRecord:
  title:      %q
  img:        %q
  lat:        %.6f
  lon:        %.6f
  screenshot: %q
----------------------------------------`, r.Title, r.Img, r.Lat, r.Lon, r.Screenshot)
	}
	fmt.Fprintln(w)
}
