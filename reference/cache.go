package reference

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/coocood/freecache"

	"photoGeotagger/geo"
)

// CacheObserver is notified of lookup cache hits and misses.
type CacheObserver interface {
	IncCacheHits()
	IncCacheMisses()
}

type noopObserver struct{}

func (noopObserver) IncCacheHits()   {}
func (noopObserver) IncCacheMisses() {}

const (
	entryNoGPS byte = 0
	entryGPS   byte = 1
	entrySize       = 17
)

// CachedReader memoizes GPS lookups per file version, so each reference photo
// is decoded at most once per run no matter how many targets probe it.
// Negative results are cached as well; read errors are not.
type CachedReader struct {
	inner    GPSReader
	cache    *freecache.Cache
	observer CacheObserver
}

// NewCachedReader wraps inner with a cache of sizeMB megabytes. A non-positive
// size returns inner unchanged.
func NewCachedReader(inner GPSReader, sizeMB int, observer CacheObserver) GPSReader {
	if sizeMB <= 0 {
		return inner
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &CachedReader{
		inner:    inner,
		cache:    freecache.NewCache(sizeMB * 1024 * 1024),
		observer: observer,
	}
}

func (c *CachedReader) ReadGPS(path string) (geo.Coordinate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return geo.Coordinate{}, err
	}
	key := []byte(fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size()))

	if val, err := c.cache.Get(key); err == nil && len(val) == entrySize {
		c.observer.IncCacheHits()
		if val[0] == entryNoGPS {
			return geo.Coordinate{}, fmt.Errorf("%s (cached): %w", path, ErrNoGPS)
		}
		return geo.Coordinate{
			Lat: math.Float64frombits(binary.LittleEndian.Uint64(val[1:9])),
			Lon: math.Float64frombits(binary.LittleEndian.Uint64(val[9:17])),
		}, nil
	}
	c.observer.IncCacheMisses()

	coord, err := c.inner.ReadGPS(path)
	switch {
	case err == nil:
		val := make([]byte, entrySize)
		val[0] = entryGPS
		binary.LittleEndian.PutUint64(val[1:9], math.Float64bits(coord.Lat))
		binary.LittleEndian.PutUint64(val[9:17], math.Float64bits(coord.Lon))
		_ = c.cache.Set(key, val, 0)
	case errors.Is(err, ErrNoGPS):
		_ = c.cache.Set(key, make([]byte, entrySize), 0)
	}
	return coord, err
}
