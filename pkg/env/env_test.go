package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDuration(t *testing.T) {
	t.Setenv("SESSION_BUDGET", "90")
	assert.Equal(t, 90*time.Second, GetDuration("SESSION_BUDGET", time.Minute))

	t.Setenv("SESSION_BUDGET", "1m30s")
	assert.Equal(t, 90*time.Second, GetDuration("SESSION_BUDGET", time.Minute))

	t.Setenv("SESSION_BUDGET", "soon")
	assert.Equal(t, time.Minute, GetDuration("SESSION_BUDGET", time.Minute))
}

func TestGetStringFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api_key")
	require.NoError(t, os.WriteFile(path, []byte("secret-key\n"), 0o600))

	t.Setenv("TAVUS_API_KEY", "from-env")
	assert.Equal(t, "from-env", GetStringFromFile("TAVUS_API_KEY", ""))

	t.Setenv("TAVUS_API_KEY_FILE", path)
	assert.Equal(t, "secret-key", GetStringFromFile("TAVUS_API_KEY", ""))
}

func TestGetStringSlice(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test, ,http://b.test ")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, GetStringSlice("CORS_ALLOWED_ORIGINS", nil))

	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")
	assert.Equal(t, []string{"x"}, GetStringSlice("CORS_ALLOWED_ORIGINS", []string{"x"}))
}
