package reference

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"photoGeotagger/geo"
)

var (
	// ErrNoMatch means no reference photo within reach carries GPS data.
	ErrNoMatch = errors.New("no reference photo with GPS")
	// ErrNoGPS is returned by a GPSReader for a readable photo without coordinates.
	ErrNoGPS = errors.New("no GPS data")
)

// GPSReader reads the GPS position embedded in a photo.
type GPSReader interface {
	ReadGPS(path string) (geo.Coordinate, error)
}

// Match is the reference photo chosen for a target.
type Match struct {
	Coordinate geo.Coordinate
	Entry      Entry
	Delta      time.Duration
}

// Options tunes the resolver.
type Options struct {
	// MaxDelta drops candidates farther away in time. Zero means unlimited.
	MaxDelta time.Duration
}

// Resolver picks, for a target filename, the temporally closest reference
// photo that actually has GPS coordinates.
type Resolver struct {
	codec  Extractor
	index  []Entry
	reader GPSReader
	opts   Options
	log    logrus.FieldLogger
}

func NewResolver(codec Extractor, index []Entry, reader GPSReader, opts Options, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		codec:  codec,
		index:  index,
		reader: reader,
		opts:   opts,
		log:    log,
	}
}

// Len is the number of indexed reference photos.
func (r *Resolver) Len() int {
	return len(r.index)
}

type candidate struct {
	delta time.Duration
	entry Entry
}

// Resolve walks the reference photos from the closest capture time outwards
// and returns the first one with GPS. Candidates without GPS, or that cannot
// be read, are skipped; coordinates are never averaged.
func (r *Resolver) Resolve(targetFilename string) (Match, error) {
	log := r.log.WithField("file", targetFilename)

	target, err := r.codec.Extract(targetFilename)
	if err != nil {
		return Match{}, fmt.Errorf("target timestamp: %w", err)
	}

	candidates := make([]candidate, 0, len(r.index))
	for _, e := range r.index {
		d := absDuration(e.Time.Sub(target))
		if r.opts.MaxDelta > 0 && d > r.opts.MaxDelta {
			continue
		}
		candidates = append(candidates, candidate{delta: d, entry: e})
	}
	if len(candidates) == 0 {
		return Match{}, fmt.Errorf("%s: no candidates: %w", targetFilename, ErrNoMatch)
	}

	// Stable: equal deltas keep index order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].delta < candidates[j].delta
	})

	for _, c := range candidates {
		coord, err := r.reader.ReadGPS(c.entry.Path)
		if err != nil {
			if !errors.Is(err, ErrNoGPS) {
				log.WithField("reference", c.entry.Filename).WithError(err).Warn("cannot read reference GPS")
			}
			continue
		}
		log.WithFields(logrus.Fields{
			"reference": c.entry.Filename,
			"delta":     c.delta.String(),
		}).Info("closest match with GPS")
		return Match{Coordinate: coord, Entry: c.entry, Delta: c.delta}, nil
	}
	return Match{}, fmt.Errorf("%s: %d candidates without GPS: %w", targetFilename, len(candidates), ErrNoMatch)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
