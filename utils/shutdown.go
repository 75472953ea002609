package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// WithShutdown returns a context that is cancelled on SIGINT or SIGTERM.
func WithShutdown(parent context.Context, log logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(quit)
		select {
		case sig := <-quit:
			log.WithField("signal", sig.String()).Warn("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Quit waits for ctx to end, then closes the named service.
func Quit(ctx context.Context, serviceName string, Close func() error, log logrus.FieldLogger) {
	<-ctx.Done()
	log.Infof("Closing %s", serviceName)
	if err := Close(); err != nil {
		log.WithError(err).Warnf("closing %s", serviceName)
	}
}
