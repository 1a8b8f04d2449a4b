// Package config loads the demo server's settings from defaults, an
// optional .env file, the environment, and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidWorkers    = errors.New("workers must be greater than zero")
	ErrInvalidBufferSize = errors.New("buffer size must be greater than zero")
	ErrInvalidMaxConns   = errors.New("max conns must not be negative")
)

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	*result = s
}

func loadEnvInt(key string, result *int) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvBool(key string, result *bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return
	}
	*result = b
}

func loadEnvDuration(key string, result *time.Duration) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return
	}
	*result = d
}

/* Pool Configuration */

type poolConfig struct {
	Workers       int  `json:"workers"`
	QueueCapacity int  `json:"queue_capacity"`
	LockThreads   bool `json:"lock_threads"`
}

func defaultPoolConfig() poolConfig {
	return poolConfig{
		Workers:       4,
		QueueCapacity: 0,
	}
}

func (p *poolConfig) loadFromEnv() {
	loadEnvInt("HELLO_WORKERS", &p.Workers)
	loadEnvInt("HELLO_QUEUE_CAPACITY", &p.QueueCapacity)
	loadEnvBool("HELLO_LOCK_THREADS", &p.LockThreads)
}

func (p *poolConfig) bindFlags(fs *flag.FlagSet) {
	fs.IntVar(&p.Workers, "workers", p.Workers, "number of pool workers")
	fs.IntVar(&p.QueueCapacity, "queue-capacity", p.QueueCapacity, "bound the job queue (0 = unbounded)")
	fs.BoolVar(&p.LockThreads, "lock-threads", p.LockThreads, "lock every worker to its own OS thread")
}

/* Server Configuration */

type serverConfig struct {
	Addr       string        `json:"addr"`
	Root       string        `json:"root"`
	Sleep      time.Duration `json:"sleep"`
	BufferSize int           `json:"buffer_size"`
	MaxConns   int           `json:"max_conns"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:       "127.0.0.1:7878",
		Root:       "",
		Sleep:      5 * time.Second,
		BufferSize: 512,
		MaxConns:   0,
	}
}

func (s *serverConfig) loadFromEnv() {
	loadEnvString("HELLO_ADDR", &s.Addr)
	loadEnvString("HELLO_ROOT", &s.Root)
	loadEnvDuration("HELLO_SLEEP", &s.Sleep)
	loadEnvInt("HELLO_BUFFER_SIZE", &s.BufferSize)
	loadEnvInt("HELLO_MAX_CONNS", &s.MaxConns)
}

func (s *serverConfig) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.Addr, "addr", s.Addr, "TCP address to listen on")
	fs.StringVar(&s.Root, "root", s.Root, "directory holding hello.html and 404.html (empty = built-in pages)")
	fs.DurationVar(&s.Sleep, "sleep", s.Sleep, "delay applied to GET /sleep")
	fs.IntVar(&s.BufferSize, "buffer-size", s.BufferSize, "bytes read from each request")
	fs.IntVar(&s.MaxConns, "max-conns", s.MaxConns, "stop after accepting this many connections (0 = until interrupted)")
}

/* Admin Configuration */

type adminConfig struct {
	Addr string `json:"addr"`
}

func (a *adminConfig) loadFromEnv() {
	loadEnvString("HELLO_ADMIN_ADDR", &a.Addr)
}

func (a *adminConfig) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&a.Addr, "admin-addr", a.Addr, "serve /healthz, /stats and /metrics on this address (empty = disabled)")
}

/* Log Configuration */

type logConfig struct {
	Level string `json:"level"`
	JSON  bool   `json:"json"`
}

func defaultLogConfig() logConfig {
	return logConfig{
		Level: "info",
	}
}

func (l *logConfig) loadFromEnv() {
	loadEnvString("HELLO_LOG_LEVEL", &l.Level)
	loadEnvBool("HELLO_LOG_JSON", &l.JSON)
}

func (l *logConfig) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&l.Level, "log-level", l.Level, "trace, debug, info, warn or error")
	fs.BoolVar(&l.JSON, "log-json", l.JSON, "emit JSON logs instead of console output")
}

// ZerologLevel parses Level, falling back to info.
func (l logConfig) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(l.Level)
	if err != nil || l.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

type Config struct {
	Pool   poolConfig
	Server serverConfig
	Admin  adminConfig
	Log    logConfig
}

func DefaultConfig() Config {
	return Config{
		Pool:   defaultPoolConfig(),
		Server: defaultServerConfig(),
		Log:    defaultLogConfig(),
	}
}

func (c *Config) LoadFromEnv() {
	c.Pool.loadFromEnv()
	c.Server.loadFromEnv()
	c.Admin.loadFromEnv()
	c.Log.loadFromEnv()
}

// BindFlags registers every setting on fs, using the current values as
// defaults, so flags override whatever LoadFromEnv found.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	c.Pool.bindFlags(fs)
	c.Server.bindFlags(fs)
	c.Admin.bindFlags(fs)
	c.Log.bindFlags(fs)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Pool.Workers <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Pool.Workers)
	}
	if c.Server.BufferSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBufferSize, c.Server.BufferSize)
	}
	if c.Server.MaxConns < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxConns, c.Server.MaxConns)
	}
	return nil
}

// Load builds the configuration for args: defaults, then envFiles (a
// missing file is not an error), then the environment, then flags.
func Load(fs *flag.FlagSet, args []string, envFiles ...string) (Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	cfg.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
