package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"photoGeotagger/geo"
)

var (
	// ErrNotFound means the provider has no position for the photo.
	ErrNotFound = errors.New("location not found")
	// ErrStopped is the operator's request to abandon the rest of the batch.
	ErrStopped = errors.New("stopped by operator")
)

// Target identifies the photo being located.
type Target struct {
	Filename string
	Path     string
}

// Provider finds a position for a photo.
type Provider interface {
	Name() string
	Locate(ctx context.Context, target Target) (geo.Coordinate, error)
}

// Result is a position and the provider that produced it.
type Result struct {
	Coordinate geo.Coordinate
	Provider   string
}

// Chain asks its providers in order and returns the first position found.
type Chain struct {
	providers []Provider
	log       logrus.FieldLogger
}

func NewChain(log logrus.FieldLogger, providers ...Provider) *Chain {
	return &Chain{providers: providers, log: log}
}

// Locate returns ErrNotFound when every provider came up empty, wrapping the
// first provider's reason. Provider failures are logged and treated as "not
// found", except ErrStopped and context cancellation, which end the chain.
func (c *Chain) Locate(ctx context.Context, target Target) (Result, error) {
	log := c.log.WithField("file", target.Filename)
	var reason error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		coord, err := p.Locate(ctx, target)
		if err == nil {
			if verr := coord.Validate(); verr != nil {
				log.WithField("provider", p.Name()).WithError(verr).Warn("provider returned an invalid position")
				continue
			}
			return Result{Coordinate: coord, Provider: p.Name()}, nil
		}
		if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		if reason == nil {
			reason = err
		}
		switch {
		case errors.Is(err, ErrNotFound):
			log.WithField("provider", p.Name()).WithError(err).Debug("no position")
		default:
			log.WithField("provider", p.Name()).WithError(err).Warn("provider failed")
		}
	}
	switch {
	case reason == nil:
		return Result{}, fmt.Errorf("%s: %w", target.Filename, ErrNotFound)
	case errors.Is(reason, ErrNotFound):
		return Result{}, fmt.Errorf("%s: %w", target.Filename, reason)
	}
	return Result{}, fmt.Errorf("%s: %w: %w", target.Filename, ErrNotFound, reason)
}
