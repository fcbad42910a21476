package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWSSUM_CONFIG"

	databaseDSNEnv     = "DATABASE_DSN"
	redisAddrEnv       = "REDIS_ADDR"
	httpAddrEnv        = "HTTP_ADDR"
	logLevelEnv        = "LOG_LEVEL"
	geminiAPIKeyEnv    = "GEMINI_API_KEY"
	geminiModelEnv     = "GEMINI_MODEL_NAME"
	newsAPIURLEnv      = "NEWS_API_URL"
	newsAPIKeyEnv      = "NEWS_API_KEY"
	newsCountryEnv     = "NEWS_COUNTRY"
	priorityDomainEnv  = "PRIORITY_DOMAIN"
	gnewsAPIURLEnv     = "GNEWS_API_URL"
	gnewsAPIKeyEnv     = "GNEWS_API_KEY"
	gnewsCountryEnv    = "GNEWS_COUNTRY"
	targetTimezonesEnv = "TARGET_TIMEZONES"
	jwtSecretEnv       = "JWT_SECRET_KEY"
	tokenExpiryEnv     = "ACCESS_TOKEN_EXPIRE_MINUTES"
	appleTeamIDEnv     = "APPLE_TEAM_ID"
	appleBundleIDEnv   = "APPLE_BUNDLE_ID"
	appleKeyIDEnv      = "APPLE_KEY_ID"
	applePrivateKeyEnv = "APPLE_PRIVATE_KEY"
)

// Config holds high-level settings required across the application.
// It is built once at startup and passed by value or pointer; nothing mutates it afterwards.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Sources   SourcesConfig   `yaml:"sources"`
	Auth      AuthConfig      `yaml:"auth"`
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig describes the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
}

// RedisConfig enables the seen-key cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	SeenTTL  time.Duration `yaml:"seenTtl"`
}

// SchedulerConfig defines when ingestion jobs run.
type SchedulerConfig struct {
	Jobs []JobConfig `yaml:"jobs"`

	// TargetTimezones adds one daily job per zone at DailyHour:DailyMinute local time.
	TargetTimezones []string      `yaml:"targetTimezones"`
	DailyHour       int           `yaml:"dailyHour"`
	DailyMinute     int           `yaml:"dailyMinute"`
	DailySource     string        `yaml:"dailySource"`
	DailyGrace      time.Duration `yaml:"dailyGrace"`
}

// JobConfig is one recurring ingestion job.
type JobConfig struct {
	Name         string        `yaml:"name"`
	Source       string        `yaml:"source"`
	Cron         string        `yaml:"cron"`
	Timezone     string        `yaml:"timezone"`
	MisfireGrace time.Duration `yaml:"misfireGrace"`
	Window       time.Duration `yaml:"window"`
}

// GeminiConfig defines how to contact the generative model.
type GeminiConfig struct {
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// FetcherConfig tunes the article page fetcher.
type FetcherConfig struct {
	UserAgent      string        `yaml:"userAgent"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
}

// SourcesConfig groups settings for headline providers.
type SourcesConfig struct {
	NewsData NewsDataConfig `yaml:"newsdata"`
	GNews    GNewsConfig    `yaml:"gnews"`
	RSS      []FeedConfig   `yaml:"rss"`
}

// NewsDataConfig configures the newsdata.io "latest" endpoint.
type NewsDataConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"apiKey"`
	Country        string `yaml:"country"`
	PriorityDomain string `yaml:"priorityDomain"`
}

// GNewsConfig configures the gnews.io headlines endpoint.
type GNewsConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"apiKey"`
	Country string `yaml:"country"`
}

// FeedConfig is one RSS/Atom feed usable as a headline source.
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	MaxItems int    `yaml:"maxItems"`
}

// AuthConfig holds token issuing and Apple sign-in settings.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwtSecret"`
	TokenExpiry time.Duration `yaml:"tokenExpiry"`
	Apple       AppleConfig   `yaml:"apple"`
}

// AppleConfig wires Sign in with Apple.
type AppleConfig struct {
	TeamID     string `yaml:"teamId"`
	BundleID   string `yaml:"bundleId"`
	KeyID      string `yaml:"keyId"`
	PrivateKey string `yaml:"privateKey"`
	TokenURL   string `yaml:"tokenUrl"`
	KeysURL    string `yaml:"keysUrl"`
}

// Configured reports whether every Apple credential is present.
func (a AppleConfig) Configured() bool {
	return a.TeamID != "" && a.BundleID != "" && a.KeyID != "" && a.PrivateKey != ""
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezones()

	if len(cfg.Scheduler.Jobs) == 0 {
		cfg.Scheduler.Jobs = defaultConfig().Scheduler.Jobs
	}

	return cfg
}

// Validate returns the startup failures that must stop the process.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, fmt.Errorf("%s is not set", databaseDSNEnv))
	}
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, fmt.Errorf("%s is not set", geminiAPIKeyEnv))
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		errs = append(errs, fmt.Errorf("%s is not set", geminiModelEnv))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, fmt.Errorf("%s is not set", jwtSecretEnv))
	}

	seen := map[string]bool{}
	for _, job := range c.AllJobs() {
		if job.Name == "" || job.Source == "" || job.Cron == "" {
			errs = append(errs, fmt.Errorf("job %q: name, source and cron are required", job.Name))
		}
		if seen[job.Name] {
			errs = append(errs, fmt.Errorf("job %q is defined twice", job.Name))
		}
		seen[job.Name] = true
	}

	return errors.Join(errs...)
}

// AllJobs returns configured jobs plus one daily job per target timezone.
func (c Config) AllJobs() []JobConfig {
	jobs := make([]JobConfig, 0, len(c.Scheduler.Jobs)+len(c.Scheduler.TargetTimezones))
	jobs = append(jobs, c.Scheduler.Jobs...)

	for _, tz := range c.Scheduler.TargetTimezones {
		jobs = append(jobs, JobConfig{
			Name:         "daily-" + c.Scheduler.DailySource + "-" + strings.ToLower(strings.ReplaceAll(tz, "/", "-")),
			Source:       c.Scheduler.DailySource,
			Cron:         fmt.Sprintf("%d %d * * *", c.Scheduler.DailyMinute, c.Scheduler.DailyHour),
			Timezone:     tz,
			MisfireGrace: c.Scheduler.DailyGrace,
			Window:       24 * time.Hour,
		})
	}

	return jobs
}

// FindJob looks a job up by name.
func (c Config) FindJob(name string) (JobConfig, bool) {
	for _, job := range c.AllJobs() {
		if job.Name == name {
			return job, true
		}
	}
	return JobConfig{}, false
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Database.DSN, databaseDSNEnv)
	setString(&c.Redis.Addr, redisAddrEnv)
	setString(&c.HTTP.Addr, httpAddrEnv)
	setString(&c.Logging.Level, logLevelEnv)

	setString(&c.Gemini.APIKey, geminiAPIKeyEnv)
	setString(&c.Gemini.Model, geminiModelEnv)

	setString(&c.Sources.NewsData.URL, newsAPIURLEnv)
	setString(&c.Sources.NewsData.APIKey, newsAPIKeyEnv)
	setString(&c.Sources.NewsData.Country, newsCountryEnv)
	setString(&c.Sources.NewsData.PriorityDomain, priorityDomainEnv)

	setString(&c.Sources.GNews.URL, gnewsAPIURLEnv)
	setString(&c.Sources.GNews.APIKey, gnewsAPIKeyEnv)
	setString(&c.Sources.GNews.Country, gnewsCountryEnv)

	if v := os.Getenv(targetTimezonesEnv); v != "" {
		c.Scheduler.TargetTimezones = splitList(v)
	}

	setString(&c.Auth.JWTSecret, jwtSecretEnv)
	if v := os.Getenv(tokenExpiryEnv); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			c.Auth.TokenExpiry = time.Duration(minutes) * time.Minute
		} else {
			log.Printf("config: invalid %s=%q, keeping %s", tokenExpiryEnv, v, c.Auth.TokenExpiry)
		}
	}

	setString(&c.Auth.Apple.TeamID, appleTeamIDEnv)
	setString(&c.Auth.Apple.BundleID, appleBundleIDEnv)
	setString(&c.Auth.Apple.KeyID, appleKeyIDEnv)
	setString(&c.Auth.Apple.PrivateKey, applePrivateKeyEnv)
}

// bindTimezones drops zones that cannot be loaded, mirroring how a bad
// scheduler timezone reverts to UTC instead of failing startup.
func (c *Config) bindTimezones() {
	for i := range c.Scheduler.Jobs {
		tz := c.Scheduler.Jobs[i].Timezone
		if tz == "" {
			c.Scheduler.Jobs[i].Timezone = defaultTimezone
			continue
		}
		if _, err := time.LoadLocation(tz); err != nil {
			log.Printf("config: job %s has unknown timezone %s, reverting to %s", c.Scheduler.Jobs[i].Name, tz, defaultTimezone)
			c.Scheduler.Jobs[i].Timezone = defaultTimezone
		}
	}

	valid := c.Scheduler.TargetTimezones[:0]
	for _, tz := range c.Scheduler.TargetTimezones {
		if _, err := time.LoadLocation(tz); err != nil {
			log.Printf("config: skipping unknown target timezone %s", tz)
			continue
		}
		valid = append(valid, tz)
	}
	c.Scheduler.TargetTimezones = valid
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{
			DSN:      "",
			MaxConns: 10,
		},
		Redis: RedisConfig{SeenTTL: 72 * time.Hour},
		Scheduler: SchedulerConfig{
			Jobs: []JobConfig{
				{
					Name:         "hourly-newsdata",
					Source:       "newsdata",
					Cron:         "8 * * * *",
					Timezone:     defaultTimezone,
					MisfireGrace: 10 * time.Minute,
					Window:       time.Hour,
				},
			},
			DailyHour:   7,
			DailyMinute: 0,
			DailySource: "gnews",
			DailyGrace:  10 * time.Minute,
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 120 * time.Second,
		},
		Fetcher: FetcherConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			ConnectTimeout: 10 * time.Second,
			Timeout:        15 * time.Second,
			MaxBodyBytes:   5 << 20,
		},
		Sources: SourcesConfig{
			NewsData: NewsDataConfig{URL: "https://newsdata.io/api/1/latest"},
			GNews:    GNewsConfig{URL: "https://gnews.io/api/v4/top-headlines"},
		},
		Auth: AuthConfig{
			TokenExpiry: 30 * time.Minute,
			Apple: AppleConfig{
				TokenURL: "https://appleid.apple.com/auth/token",
				KeysURL:  "https://appleid.apple.com/auth/keys",
			},
		},
	}
}
