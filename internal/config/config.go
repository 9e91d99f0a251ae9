// Package config loads the router's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
)

// Config is the top-level router configuration. Every field is optional;
// an empty file yields the built-in worker population and default timings.
type Config struct {
	Port       string           `yaml:"port"`
	Seed       uint64           `yaml:"seed"`
	Workers    []WorkerConfig   `yaml:"workers"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// WorkerConfig seeds one worker. Schedule maps lower-case weekday names to
// "HH:MM-HH:MM" windows; omit it for an always-on worker.
type WorkerConfig struct {
	ID          string                `yaml:"id"`
	Name        string                `yaml:"name"`
	Specialties []string              `yaml:"specialties"`
	HourlyRate  float64               `yaml:"hourly_rate"`
	MaxCapacity int                   `yaml:"max_capacity"`
	Metrics     *domainworker.Metrics `yaml:"metrics"`
	Schedule    map[string][]string   `yaml:"schedule"`
}

type DispatcherConfig struct {
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`
	MaxMatchAttempts int           `yaml:"max_match_attempts"`
	StartOffsetMin   time.Duration `yaml:"start_offset_min"`
	StartOffsetMax   time.Duration `yaml:"start_offset_max"`
	BackoffInitial   time.Duration `yaml:"backoff_initial"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
}

type LifecycleConfig struct {
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

type MonitorConfig struct {
	Interval          time.Duration `yaml:"interval"`
	ChurnGate         *float64      `yaml:"churn_gate"`
	BreakProbability  *float64      `yaml:"break_probability"`
	ReturnProbability *float64      `yaml:"return_probability"`
	ShedProbability   *float64      `yaml:"shed_probability"`
	DisableChurn      bool          `yaml:"disable_churn"`
}

// RetrievalConfig selects the in-process corpus and result cache. Corpus is a
// YAML list of transcript chunks; the embedded sample is used when empty.
type RetrievalConfig struct {
	Corpus   string        `yaml:"corpus"`
	TopK     int           `yaml:"top_k"`
	MinScore *float64      `yaml:"min_score"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig bounds submissions per customer. A zero PerSecond disables
// the limiter.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Lifecycle.MinDelay == 0 {
		c.Lifecycle.MinDelay = 30 * time.Second
	}
	if c.Lifecycle.MaxDelay == 0 {
		c.Lifecycle.MaxDelay = 90 * time.Second
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 30 * time.Second
	}
	if c.Retrieval.CacheTTL == 0 {
		c.Retrieval.CacheTTL = 5 * time.Minute
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	for i := range c.Workers {
		if c.Workers[i].Name == "" {
			c.Workers[i].Name = c.Workers[i].ID
		}
	}
}

func (c *Config) validate() error {
	var errs []string
	if c.Lifecycle.MaxDelay < c.Lifecycle.MinDelay {
		errs = append(errs, "lifecycle.max_delay must not be below lifecycle.min_delay")
	}
	if c.Dispatcher.MaxMatchAttempts < 0 {
		errs = append(errs, "dispatcher.max_match_attempts must be >= 0")
	}
	if c.Dispatcher.StartOffsetMax < c.Dispatcher.StartOffsetMin {
		errs = append(errs, "dispatcher.start_offset_max must not be below dispatcher.start_offset_min")
	}
	for name, p := range map[string]*float64{
		"churn_gate":         c.Monitor.ChurnGate,
		"break_probability":  c.Monitor.BreakProbability,
		"return_probability": c.Monitor.ReturnProbability,
		"shed_probability":   c.Monitor.ShedProbability,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			errs = append(errs, fmt.Sprintf("monitor.%s must be within [0,1]", name))
		}
	}
	if c.RateLimit.PerSecond < 0 {
		errs = append(errs, "rate_limit.per_second must be >= 0")
	}

	seen := make(map[string]bool, len(c.Workers))
	for i, w := range c.Workers {
		if w.ID == "" {
			errs = append(errs, fmt.Sprintf("workers[%d].id is required", i))
		} else if seen[w.ID] {
			errs = append(errs, fmt.Sprintf("workers[%d].id %q is duplicated", i, w.ID))
		}
		seen[w.ID] = true
		if w.MaxCapacity <= 0 {
			errs = append(errs, fmt.Sprintf("workers[%d].max_capacity must be > 0", i))
		}
		if len(w.Specialties) == 0 {
			errs = append(errs, fmt.Sprintf("workers[%d].specialties is required", i))
		}
		if _, err := parseSchedule(w.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("workers[%d].schedule: %v", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Seeds returns the configured worker population, or the built-in one when
// the file lists none.
func (c *Config) Seeds() []domainworker.Seed {
	if len(c.Workers) == 0 {
		return domainworker.DefaultSeeds
	}
	out := make([]domainworker.Seed, 0, len(c.Workers))
	for _, w := range c.Workers {
		// Already validated.
		schedule, _ := parseSchedule(w.Schedule)
		out = append(out, domainworker.Seed{
			ID:          w.ID,
			Name:        w.Name,
			Specialties: w.Specialties,
			HourlyRate:  w.HourlyRate,
			MaxCapacity: w.MaxCapacity,
			Metrics:     w.Metrics,
			Schedule:    schedule,
		})
	}
	return out
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseSchedule(raw map[string][]string) (domainworker.Schedule, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	s := make(domainworker.Schedule, len(raw))
	for day, windows := range raw {
		wd, ok := weekdays[strings.ToLower(day)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		for _, spec := range windows {
			w, err := domainworker.ParseWindow(spec)
			if err != nil {
				return nil, err
			}
			s[wd] = append(s[wd], w)
		}
	}
	return s, nil
}

// LoadCorpus reads the configured corpus file, or the embedded sample when
// no file is configured.
func (c *Config) LoadCorpus() ([]domainretrieval.Chunk, error) {
	data := sampleCorpus
	if c.Retrieval.Corpus != "" {
		var err error
		data, err = os.ReadFile(c.Retrieval.Corpus)
		if err != nil {
			return nil, fmt.Errorf("config: read corpus %s: %w", c.Retrieval.Corpus, err)
		}
	}
	var chunks []domainretrieval.Chunk
	if err := yaml.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("config: parse corpus: %w", err)
	}
	return chunks, nil
}
