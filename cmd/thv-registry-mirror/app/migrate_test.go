package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-registry-mirror/database"
)

// databaseConfigFile writes a mirror config pointing at the test container
func databaseConfigFile(t *testing.T, connStr string) string {
	t.Helper()

	parsed, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)

	dir := t.TempDir()
	passwordFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte(parsed.ConnConfig.Password), 0o600))

	return writeConfig(t, fmt.Sprintf(`registry: http://localhost:7001
storage: database
database:
  host: %s
  port: %d
  user: %s
  database: %s
  passwordFile: %s
  sslMode: disable
`, parsed.ConnConfig.Host, parsed.ConnConfig.Port, parsed.ConnConfig.User, parsed.ConnConfig.Database, passwordFile))
}

func TestMigrateCommands(t *testing.T) {
	t.Parallel()

	connStr, cleanup := database.SetupTestDBContainer(t, context.Background())
	t.Cleanup(cleanup)
	path := databaseConfigFile(t, connStr)

	_, err := executeCommand(t, "no\n", "migrate", "up", "--config", path)
	require.NoError(t, err, "declining the prompt is not an error")
	_, _, err = database.GetVersion(connStr)
	require.Error(t, err, "nothing is applied when the prompt is declined")

	_, err = executeCommand(t, "", "migrate", "up", "--config", path, "--yes")
	require.NoError(t, err)
	latest, dirty, err := database.GetVersion(connStr)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Positive(t, latest)

	// applying twice is a no-op
	_, err = executeCommand(t, "", "migrate", "up", "--config", path, "-y")
	require.NoError(t, err)

	_, err = executeCommand(t, "no\n", "migrate", "down", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration cancelled by user")

	_, err = executeCommand(t, "yes\n", "migrate", "down", "--config", path, "--num-steps", "1")
	require.NoError(t, err)
	version, _, err := database.GetVersion(connStr)
	if latest == 1 {
		require.Error(t, err)
	} else {
		require.NoError(t, err)
		assert.Equal(t, latest-1, version)
	}

	_, err = executeCommand(t, "", "migrate", "down", "--config", path, "--yes")
	require.NoError(t, err)
	_, _, err = database.GetVersion(connStr)
	require.Error(t, err, "schema is removed")
}
