package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"photoGeotagger/config"
	"photoGeotagger/geotag"
	"photoGeotagger/metrics"
	"photoGeotagger/utils"
)

var (
	configPath string
	printList  bool
	clearDB    bool
	serveMode  bool
	manualMode bool
	landmarks  bool
	refDir     string
	targetDir  string
)

func main() {
	flag.StringVar(&configPath, "config", "", "Path to the config file (default ./photogeotagger.yaml if present)")
	flag.BoolVar(&printList, "print", false, "Print produced records at the end")
	flag.BoolVar(&clearDB, "clear-db", false, "Delete all runs and records from the ledger and exit")
	flag.BoolVar(&serveMode, "serve", false, "Run HTTP API server and wait for requests")
	flag.BoolVar(&manualMode, "manual", false, "Ask for coordinates on the console when no reference photo matches")
	flag.BoolVar(&landmarks, "landmarks", false, "Try Google Cloud Vision landmark detection when no reference photo matches")
	flag.StringVar(&refDir, "reference", "", "Reference photo directory (overrides config)")
	flag.StringVar(&targetDir, "targets", "", "Target photo directory (overrides config)")
	flag.Parse()

	os.Exit(run())
}

func run() int {
	conf, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		return 2
	}
	applyFlags(conf)

	log, err := newLogger(conf.Log, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to configure logging:", err)
		return 2
	}
	if conf.Path != "" {
		log.WithField("config", conf.Path).Debug("config loaded")
	}

	ctx, cancel := utils.WithShutdown(context.Background(), log)
	defer cancel()

	m := metrics.New()

	if !clearDB {
		if err := recoverLedger(conf.Paths.Database, log); err != nil {
			log.WithError(err).Error("failed to open DB")
			return 1
		}
	}

	if serveMode {
		if err := StartServer(ctx, conf, m, log); err != nil {
			log.WithError(err).Error("server error")
			return 1
		}
		return 0
	}

	if clearDB {
		db, err := initializeDB(conf.Paths.Database)
		if err != nil {
			log.WithError(err).Error("failed to open DB")
			return 1
		}
		defer db.Close()
		if err := db.clearDBTables(); err != nil {
			log.WithError(err).Error("failed to clear DB")
			return 1
		}
		log.Info("cleared DB tables: runs, records")
		return 0
	}

	pc := ProcessingConfig{
		Conf:      conf,
		Landmarks: conf.Fallback.Landmarks,
		Manual:    conf.Fallback.Manual,
		Input:     os.Stdin,
		Output:    os.Stdout,
	}
	result, err := fileProcessing(ctx, pc, log, m)
	if printList {
		printRecords(os.Stdout, result.Records)
	}
	if err != nil {
		if errors.Is(err, geotag.ErrWriterUnavailable) {
			log.WithError(err).Error("batch aborted")
		} else {
			log.WithError(err).Error("batch failed")
		}
		return 1
	}
	log.WithFields(logrus.Fields{
		"run":     result.RunID,
		"tagged":  result.Tagged,
		"skipped": result.Skipped,
		"failed":  result.Failed,
		"stopped": result.Stopped,
	}).Info("batch finished")
	return 0
}

// applyFlags lets command line flags override the loaded config.
func applyFlags(conf *config.Config) {
	if manualMode {
		conf.Fallback.Manual = true
	}
	if landmarks {
		conf.Fallback.Landmarks = true
	}
	if refDir != "" {
		conf.Paths.Reference = refDir
	}
	if targetDir != "" {
		conf.Paths.Targets = targetDir
	}
}

func newLogger(c config.Log, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
