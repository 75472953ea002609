package locate

import (
	"context"
	"fmt"

	"photoGeotagger/geo"
	"photoGeotagger/reference"
)

// ReferenceProvider locates photos through the reference library.
type ReferenceProvider struct {
	Resolver *reference.Resolver
}

func (p ReferenceProvider) Name() string { return "reference" }

func (p ReferenceProvider) Locate(_ context.Context, target Target) (geo.Coordinate, error) {
	m, err := p.Resolver.Resolve(target.Filename)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return m.Coordinate, nil
}
