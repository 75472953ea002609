package timestamp

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoTimestamp is returned when the filename carries no timestamp.
	ErrNoTimestamp = errors.New("no timestamp in filename")
	// ErrInvalidTimestamp is returned when the digits match but do not form a valid date/time.
	ErrInvalidTimestamp = errors.New("invalid timestamp in filename")
)

// DefaultPattern matches YYYYMMDD_HHMMSS. The year group is only a placeholder;
// the codec substitutes the configured fixed year.
const DefaultPattern = `{year}(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`

// OffsetRule shifts timestamps of files whose name starts with Prefix.
// The parsed time has Offset subtracted from it.
type OffsetRule struct {
	Prefix string
	Offset time.Duration
}

// Config describes the dataset-specific filename convention.
type Config struct {
	Pattern       string
	FixedYear     int
	DeviceOffsets []OffsetRule
}

// DefaultConfig is the 2022 trip convention: one camera family ran 9 hours ahead.
func DefaultConfig() Config {
	return Config{
		Pattern:   DefaultPattern,
		FixedYear: 2022,
		DeviceOffsets: []OffsetRule{
			{Prefix: "SAMSUNG", Offset: 9 * time.Hour},
		},
	}
}

// Codec extracts capture timestamps from filenames.
type Codec struct {
	re      *regexp.Regexp
	year    int
	offsets []OffsetRule
}

// New compiles the pattern of cfg. The pattern must contain the {year}
// placeholder and exactly five capture groups: month, day, hour, minute, second.
func New(cfg Config) (*Codec, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if !strings.Contains(cfg.Pattern, "{year}") {
		return nil, fmt.Errorf("timestamp pattern %q has no {year} placeholder", cfg.Pattern)
	}
	if cfg.FixedYear < 1 || cfg.FixedYear > 9999 {
		return nil, fmt.Errorf("fixed year %d out of range", cfg.FixedYear)
	}
	expr := strings.ReplaceAll(cfg.Pattern, "{year}", fmt.Sprintf("%04d", cfg.FixedYear))
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile timestamp pattern: %w", err)
	}
	if re.NumSubexp() != 5 {
		return nil, fmt.Errorf("timestamp pattern %q must have 5 groups, has %d", cfg.Pattern, re.NumSubexp())
	}
	return &Codec{
		re:      re,
		year:    cfg.FixedYear,
		offsets: append([]OffsetRule(nil), cfg.DeviceOffsets...),
	}, nil
}

// Extract returns the capture time encoded in filename, corrected for the
// device offset of the first matching prefix rule.
func (c *Codec) Extract(filename string) (time.Time, error) {
	m := c.re.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, fmt.Errorf("%s: %w", filename, ErrNoTimestamp)
	}

	var v [5]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", filename, ErrInvalidTimestamp)
		}
		v[i] = n
	}
	month, day, hour, minute, second := v[0], v[1], v[2], v[3], v[4]

	t := time.Date(c.year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// Civil time without a zone. time.Date normalizes out-of-range values, so a
	// mismatch means the date was invalid.
	if t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, fmt.Errorf("%s: %04d-%02d-%02d %02d:%02d:%02d: %w",
			filename, c.year, month, day, hour, minute, second, ErrInvalidTimestamp)
	}

	for _, rule := range c.offsets {
		if rule.Prefix != "" && strings.HasPrefix(filename, rule.Prefix) {
			t = t.Add(-rule.Offset)
			break
		}
	}
	return t, nil
}
