package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"photoGeotagger/timestamp"
)

const (
	DefaultConfigName = "photogeotagger"
	EnvPrefix         = "PHOTOGEO"
)

type Paths struct {
	Reference   string `mapstructure:"reference" validate:"required"`
	Targets     string `mapstructure:"targets" validate:"required"`
	Screenshots string `mapstructure:"screenshots"`
	Template    string `mapstructure:"template"`
	Output      string `mapstructure:"output"`
	WebPrefix   string `mapstructure:"webPrefix"`
	Database    string `mapstructure:"database" validate:"required"`
	Previews    string `mapstructure:"previews"`
}

type OffsetRule struct {
	Prefix string        `mapstructure:"prefix"`
	Offset time.Duration `mapstructure:"offset"`
}

type Timestamp struct {
	Pattern       string       `mapstructure:"pattern" validate:"required"`
	FixedYear     int          `mapstructure:"fixedYear" validate:"required|min:1|max:9999"`
	DeviceOffsets []OffsetRule `mapstructure:"deviceOffsets"`
}

type Resolver struct {
	MaxDelta   time.Duration `mapstructure:"maxDelta"`
	Extensions []string      `mapstructure:"extensions"`
}

type Cache struct {
	Enabled bool `mapstructure:"enabled"`
	SizeMB  int  `mapstructure:"sizeMB" validate:"min:0"`
}

type Writer struct {
	JPEGQuality int `mapstructure:"jpegQuality" validate:"required|min:1|max:100"`
}

type Server struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type Mongo struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"required|in:trace,debug,info,warn,error"`
	Format string `mapstructure:"format" validate:"required|in:text,json"`
}

type Fallback struct {
	Landmarks bool `mapstructure:"landmarks"`
	Manual    bool `mapstructure:"manual"`
}

type Config struct {
	Path      string    `mapstructure:"-"`
	Paths     Paths     `mapstructure:"paths"`
	Timestamp Timestamp `mapstructure:"timestamp"`
	Resolver  Resolver  `mapstructure:"resolver"`
	Cache     Cache     `mapstructure:"cache"`
	Writer    Writer    `mapstructure:"writer"`
	Server    Server    `mapstructure:"server"`
	Mongo     Mongo     `mapstructure:"mongo"`
	Log       Log       `mapstructure:"log"`
	Fallback  Fallback  `mapstructure:"fallback"`
}

func setDefaults(v *viper.Viper) {
	def := timestamp.DefaultConfig()

	v.SetDefault("paths.reference", "../photo_all")
	v.SetDefault("paths.targets", "photos")
	v.SetDefault("paths.screenshots", "screenshot")
	v.SetDefault("paths.template", "index_ref.html")
	v.SetDefault("paths.output", "index.html")
	v.SetDefault("paths.webPrefix", "photos")
	v.SetDefault("paths.database", "photoGeotagger.db")
	v.SetDefault("paths.previews", ".previews")

	v.SetDefault("timestamp.pattern", def.Pattern)
	v.SetDefault("timestamp.fixedYear", def.FixedYear)
	offsets := make([]map[string]interface{}, 0, len(def.DeviceOffsets))
	for _, r := range def.DeviceOffsets {
		offsets = append(offsets, map[string]interface{}{"prefix": r.Prefix, "offset": r.Offset.String()})
	}
	v.SetDefault("timestamp.deviceOffsets", offsets)

	v.SetDefault("resolver.maxDelta", "0s")
	v.SetDefault("resolver.extensions", []string{".png", ".jpg", ".jpeg", ".tiff", ".bmp", ".gif"})
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.sizeMB", 4)
	v.SetDefault("writer.jpegQuality", 95)
	v.SetDefault("server.addr", "127.0.0.1:7070")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "photo_geotagger")
	v.SetDefault("mongo.collection", "photos")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("fallback.landmarks", false)
	v.SetDefault("fallback.manual", false)
}

// Load reads configuration from path (or ./photogeotagger.yaml when path is
// empty and the file exists), then PHOTOGEO_* environment variables, which
// may also come from a .env file in the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	conf.Path = v.ConfigFileUsed()

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks struct tag rules and the timestamp pattern.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}
	if _, err := timestamp.New(c.TimestampConfig()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TimestampConfig converts the timestamp section for the codec.
func (c *Config) TimestampConfig() timestamp.Config {
	rules := make([]timestamp.OffsetRule, 0, len(c.Timestamp.DeviceOffsets))
	for _, r := range c.Timestamp.DeviceOffsets {
		rules = append(rules, timestamp.OffsetRule{Prefix: r.Prefix, Offset: r.Offset})
	}
	return timestamp.Config{
		Pattern:       c.Timestamp.Pattern,
		FixedYear:     c.Timestamp.FixedYear,
		DeviceOffsets: rules,
	}
}

// CacheSizeMB is the GPS cache size, zero when disabled.
func (c *Config) CacheSizeMB() int {
	if !c.Cache.Enabled {
		return 0
	}
	return c.Cache.SizeMB
}
