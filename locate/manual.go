package locate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"photoGeotagger/geo"
)

// Session is the operator console used for manual entry. It is opened once
// before a batch and closed after it; prompts on a closed session find nothing.
type Session struct {
	mu     sync.Mutex
	in     *bufio.Scanner
	out    io.Writer
	closed bool
}

func OpenSession(in io.Reader, out io.Writer) *Session {
	return &Session{in: bufio.NewScanner(in), out: out}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Previewer renders a photo somewhere the operator can look at it and
// returns where.
type Previewer interface {
	Preview(path string) (string, error)
}

// ManualProvider asks the operator for coordinates.
type ManualProvider struct {
	Session   *Session
	Previewer Previewer
}

func (p ManualProvider) Name() string { return "manual" }

// Locate blocks until the operator answers. An empty answer skips the photo,
// "stop" returns ErrStopped. Malformed or out-of-range input is re-prompted.
func (p ManualProvider) Locate(_ context.Context, target Target) (geo.Coordinate, error) {
	s := p.Session
	if s == nil {
		return geo.Coordinate{}, fmt.Errorf("no operator session: %w", ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return geo.Coordinate{}, fmt.Errorf("operator session closed: %w", ErrNotFound)
	}

	fmt.Fprintf(s.out, "\nEnter GPS for %s\n", target.Filename)
	if p.Previewer != nil {
		if preview, err := p.Previewer.Preview(target.Path); err != nil {
			fmt.Fprintf(s.out, "Could not load image: %v\n", err)
		} else {
			fmt.Fprintf(s.out, "Preview: %s\n", preview)
		}
	}

	for {
		fmt.Fprint(s.out, "Latitude, longitude (empty to skip, \"stop\" to end): ")
		if !s.in.Scan() {
			s.closed = true
			if err := s.in.Err(); err != nil {
				return geo.Coordinate{}, fmt.Errorf("read operator input: %w", err)
			}
			return geo.Coordinate{}, fmt.Errorf("operator input closed: %w", ErrNotFound)
		}
		line := strings.TrimSpace(s.in.Text())
		switch strings.ToLower(line) {
		case "":
			return geo.Coordinate{}, fmt.Errorf("skipped by operator: %w", ErrNotFound)
		case "stop", "q", "quit":
			return geo.Coordinate{}, ErrStopped
		}

		c, err := parseLatLon(line)
		if err != nil {
			fmt.Fprintln(s.out, "Invalid number format.")
			continue
		}
		if err := c.Validate(); err != nil {
			fmt.Fprintln(s.out, "Invalid coordinates range.")
			continue
		}
		return c, nil
	}
}

var errFormat = errors.New("expected two numbers")

func parseLatLon(line string) (geo.Coordinate, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return geo.Coordinate{}, errFormat
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return geo.Coordinate{}, err
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return geo.Coordinate{}, err
	}
	return geo.Coordinate{Lat: lat, Lon: lon}, nil
}
