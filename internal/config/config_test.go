package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("DATABASE_URL", "postgres://drl@localhost/drl")
	t.Setenv("EVALUATION_ADVISOR_STEP", "true")
	t.Setenv("DRAFT_TTL", "2h")

	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.IsTest())
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "postgres://drl@localhost/drl", c.DatabaseURL)
	assert.True(t, c.AdvisorStep)
	assert.Equal(t, 2*time.Hour, c.DraftTTL)
	assert.Equal(t, "gemini-1.5-flash", c.Gemini.Model)
	assert.Equal(t, int64(10<<20), c.UploadMaxBytes)
	assert.Equal(t, "0 8 * * *", c.ReminderCron)
	assert.Equal(t, "Asia/Ho_Chi_Minh", c.ReminderLocation.String())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", ".env.qa"), []byte("MINIO_BUCKET=qa-evidence\nWORKER_CONCURRENCY=2\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("MINIO_BUCKET")
		_ = os.Unsetenv("WORKER_CONCURRENCY")
	})
	t.Setenv("ENV", "qa")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "QA", c.Env)
	assert.Equal(t, "qa-evidence", c.MinIO.Bucket)
	assert.Equal(t, 2, c.WorkerConcurrency)
}

func TestFromViperValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   interface{}
		wantErr bool
	}{
		{name: "defaults", wantErr: false},
		{name: "zero ttl", key: "draft.ttl", value: time.Duration(0), wantErr: true},
		{name: "negative upload", key: "upload.max_bytes", value: int64(-1), wantErr: true},
		{name: "no workers", key: "worker.concurrency", value: 0, wantErr: true},
		{name: "unknown timezone", key: "reminder.timezone", value: "Mars/Olympus", wantErr: true},
		{name: "blank cron", key: "reminder.cron", value: " ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			defaults(v)
			if tt.key != "" {
				v.Set(tt.key, tt.value)
			}
			_, err := FromViper("TEST", v)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromViper() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
