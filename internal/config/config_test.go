package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemmy", cfg.DBName)
	assert.Equal(t, 60*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "local", cfg.BlobBackend)
	assert.Equal(t, 240, cfg.CustomerMaxChecks)
	assert.Equal(t, 15*time.Second, cfg.CustomerCheckInterval)
	assert.Equal(t, 720, cfg.VendorMaxChecks)
	assert.Equal(t, 5*time.Second, cfg.VendorCheckInterval)
	assert.Equal(t, "free", cfg.WorkflowPolicy)
	assert.False(t, cfg.MirrorCustomerWrites)
	assert.Empty(t, cfg.Phases)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := Load()
	assert.ErrorContains(t, err, "MONGO_URI")

	t.Setenv("MONGO_URI", "mongodb://x")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	setRequired(t)
	t.Setenv("BLOB_BACKEND", "s3")
	_, err := Load()
	assert.ErrorContains(t, err, "BLOB_BACKEND")

	t.Setenv("BLOB_BACKEND", "gridfs")
	t.Setenv("WORKFLOW_POLICY", "sideways")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CUSTOMER_MAX_CHECKS", "12")
	t.Setenv("CUSTOMER_CHECK_INTERVAL", "30s")
	t.Setenv("BUDGET_BACKEND", "REDIS")
	t.Setenv("MIRROR_CUSTOMER_WRITES", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.CustomerMaxChecks)
	assert.Equal(t, 30*time.Second, cfg.CustomerCheckInterval)
	assert.Equal(t, "redis", cfg.BudgetBackend)
	assert.True(t, cfg.MirrorCustomerWrites)
}

func TestLoadPhasesFromFile(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "gemmy.yaml")
	content := `workflow:
  phases:
    - id: created
      label: Created
    - id: address_captured
    - id: photos_submitted
    - id: photos_reviewed
    - id: paid_complete
      label: Done
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", file)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Phases, 5)
	assert.Equal(t, "created", cfg.Phases[0].ID)
	assert.Equal(t, "Done", cfg.Phases[4].Label)
}
