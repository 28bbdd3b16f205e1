// ABOUTME: Tests for tailnet configuration resolution
// ABOUTME: Starting a real node needs network access and is not covered here

package tailnet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStateDir(t *testing.T) {
	dir, err := resolveStateDir("/var/lib/printauth/ts")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/printauth/ts", dir)

	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err = resolveStateDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "printauth", "tailscale"), dir)
}

func TestResolveAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")

	key, err := resolveAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	_, err = resolveAuthKey("")
	assert.Error(t, err)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}

func TestStart_RequiresAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")

	_, err := Start(context.Background(), Config{
		Hostname: "printauth-test",
		StateDir: t.TempDir(),
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth key required")
}
