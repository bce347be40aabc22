// Package config handles the parsing and validation of application configuration
// from command-line arguments, environment variables and an optional INI file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/twinfo/internal/logger"
	"github.com/woozymasta/twinfo/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Output  Output        `group:"Output Options" env-namespace:"TWINFO"`
	Query   Query         `group:"Query Options" env-namespace:"TWINFO"`
	Storage Storage       `group:"Registry Options" namespace:"db" env-namespace:"TWINFO_DB"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"TWINFO_GEOIP"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"TWINFO_LOG"`

	ConfigFile string `short:"c" long:"config" env:"TWINFO_CONFIG" description:"Path to INI configuration file" no-ini:"true"`
	FakeServer string `long:"serve-fake" hidden:"true" no-ini:"true"`

	Version bool `short:"v" long:"version" description:"Print version and build info" no-ini:"true"`
}

// Output holds the server list and the result file location.
type Output struct {
	// betteralign:ignore

	Servers []ServerEntry `short:"s" long:"server" env:"SERVERS" env-delim:"," value-name:"NAME=ADDRESS" description:"Server name and address, e.g. Server01=127.0.0.1:8303 (repeatable)"`
	File    string        `short:"f" long:"file" env:"FILE" description:"Name of the file that will store servers info, '-' for stdout" default:"servers.json"`
	Path    string        `short:"p" long:"path" env:"PATH" description:"Directory of the servers info file" default:"."`
	Indent  int           `long:"indent" env:"INDENT" description:"JSON indentation width, 0 for compact output" default:"2"`
}

// Query holds the server info query configuration.
type Query struct {
	// betteralign:ignore

	Timeout    Seconds `short:"t" long:"timeout" env:"TIMEOUT" description:"Per server response timeout, seconds or duration" default:"2"`
	BufferSize uint16  `long:"buffer-size" env:"BUFFER_SIZE" description:"Receive buffer size" default:"2048"`
	Vanilla    bool    `long:"vanilla" env:"VANILLA" description:"Send plain Teeworlds 0.6 requests, without asking for extended info"`
	Workers    int     `short:"w" long:"workers" env:"WORKERS" description:"Number of servers queried concurrently, 1 is sequential" default:"8"`
	Rate       float64 `long:"rate" env:"RATE" description:"Maximum queries started per second, 0 is unlimited" default:"0"`
	Retries    int     `long:"retries" env:"RETRIES" description:"Extra attempts for servers that time out" default:"0"`
}

// Storage holds the server registry configuration.
type Storage struct {
	// betteralign:ignore

	Path   string `short:"d" long:"path" env:"PATH" description:"Path to SQLite server registry, empty disables it"`
	Save   bool   `long:"save" env:"SAVE" description:"Store --server entries in the registry" no-ini:"true"`
	Delete string `long:"delete" value-name:"NAME" description:"Remove a server from the registry and exit" no-ini:"true"`
	List   bool   `long:"list" description:"Print registry servers and exit" no-ini:"true"`
	Prune  bool   `long:"prune" description:"Query registry servers, remove the ones that fail and exit" no-ini:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB from when missing or outdated"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Parse reads the configuration from flags, environment variables and the INI file.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			// already printed by go-flags
			os.Exit(1)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args into a Config. When --config is given the INI file is applied first,
// so command line and environment values override it.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := newParser(&cfg)

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		path := cfg.ConfigFile

		cfg = Config{}
		parser = newParser(&cfg)
		if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if _, err := parser.ParseArgs(args); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newParser(cfg *Config) *flags.Parser {
	parser := flags.NewParser(cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	return parser
}

func (c *Config) validate() error {
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Query.Timeout)
	}
	if c.Query.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Query.Workers)
	}
	if c.Query.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", c.Query.Rate)
	}
	if c.Query.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Query.Retries)
	}
	if c.Query.BufferSize < 64 {
		return fmt.Errorf("buffer size %d is too small", c.Query.BufferSize)
	}
	if (c.Storage.Save || c.Storage.List || c.Storage.Prune || c.Storage.Delete != "") && c.Storage.Path == "" {
		return errors.New("registry operations require `--db-path`")
	}

	return nil
}
