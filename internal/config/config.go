// Package config reads settings from the environment, optionally seeded from
// config/.env.<env>.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string
	HTTPAddr    string
	APIToken    string
	DatabaseURL string
	RedisAddr   string
	MinIO       MinIO
	Gemini      Gemini
	Rollbar     string

	// AdvisorStep inserts the advisor approval between class and faculty.
	AdvisorStep       bool
	DraftTTL          time.Duration
	UploadMaxBytes    int64
	WorkerConcurrency int

	// ReminderCron schedules the period deadline reminders, evaluated in
	// ReminderLocation.
	ReminderCron     string
	ReminderLocation *time.Location
}

type MinIO struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

type Gemini struct {
	APIKey string
	Model  string
}

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("api.token", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.bucket", "evidence")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("rollbar.token", "")
	v.SetDefault("evaluation.advisor_step", false)
	v.SetDefault("draft.ttl", 24*time.Hour)
	v.SetDefault("upload.max_bytes", int64(10<<20))
	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("reminder.cron", "0 8 * * *")
	v.SetDefault("reminder.timezone", "Asia/Ho_Chi_Minh")
}

// Load reads the configuration. ENV selects the environment: DEV (default),
// TEST, QA or PROD. Keys map to variables by upper-casing and replacing dots,
// so database.url is read from DATABASE_URL.
func Load() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "config.Getwd")
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "config.godotenv(%s)", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "config.os.Stat(%s)", dotEnvPath)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return FromViper(env, v)
}

func FromViper(env string, v *viper.Viper) (*Config, error) {
	c := &Config{
		Env:         env,
		HTTPAddr:    v.GetString("http.addr"),
		APIToken:    v.GetString("api.token"),
		DatabaseURL: v.GetString("database.url"),
		RedisAddr:   v.GetString("redis.addr"),
		MinIO: MinIO{
			Endpoint:  v.GetString("minio.endpoint"),
			Bucket:    v.GetString("minio.bucket"),
			AccessKey: v.GetString("minio.access_key"),
			SecretKey: v.GetString("minio.secret_key"),
			Region:    v.GetString("minio.region"),
		},
		Gemini: Gemini{
			APIKey: v.GetString("gemini.api_key"),
			Model:  v.GetString("gemini.model"),
		},
		Rollbar:           v.GetString("rollbar.token"),
		AdvisorStep:       v.GetBool("evaluation.advisor_step"),
		DraftTTL:          v.GetDuration("draft.ttl"),
		UploadMaxBytes:    v.GetInt64("upload.max_bytes"),
		WorkerConcurrency: v.GetInt("worker.concurrency"),
		ReminderCron:      v.GetString("reminder.cron"),
	}
	loc, err := time.LoadLocation(v.GetString("reminder.timezone"))
	if err != nil {
		return nil, errors.Wrap(err, "reminder.timezone")
	}
	c.ReminderLocation = loc
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.DraftTTL <= 0 {
		return errors.Errorf("draft.ttl must be positive, got %s", c.DraftTTL)
	}
	if c.UploadMaxBytes <= 0 {
		return errors.Errorf("upload.max_bytes must be positive, got %d", c.UploadMaxBytes)
	}
	if c.WorkerConcurrency <= 0 {
		return errors.Errorf("worker.concurrency must be positive, got %d", c.WorkerConcurrency)
	}
	if strings.TrimSpace(c.ReminderCron) == "" {
		return errors.New("reminder.cron must be set")
	}
	return nil
}

func (c *Config) IsTest() bool {
	return c.Env == "TEST"
}
