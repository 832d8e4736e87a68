package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newCaptured() (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	c := &cobra.Command{}
	c.SetOut(out)
	c.SetErr(out)
	return c, out
}

func TestHashPassword(t *testing.T) {
	t.Run("from argument", func(t *testing.T) {
		c, out := newCaptured()
		require.NoError(t, runHashPassword(c, []string{"hunter2"}))

		hash := strings.TrimSpace(out.String())
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
	})

	t.Run("from stdin", func(t *testing.T) {
		c, out := newCaptured()
		c.SetIn(strings.NewReader("hunter2\n"))
		require.NoError(t, runHashPassword(c, nil))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		hash := strings.TrimPrefix(lines[len(lines)-1], "Password: ")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
	})

	t.Run("empty", func(t *testing.T) {
		c, _ := newCaptured()
		assert.Error(t, runHashPassword(c, []string{""}))
	})
}

func TestTestConfig(t *testing.T) {
	t.Setenv("HUB_URL", "")
	t.Setenv("NEXT_PUBLIC_HUB_URL", "")
	t.Setenv("HUB_API_TOKEN", "hub-token-0123456789")
	t.Setenv("GW_URL", "")
	t.Setenv("NEXT_PUBLIC_GW_URL", "")
	t.Setenv("GW_API_TOKEN", "")
	t.Setenv("ADMIN_USER", "")
	t.Setenv("ADMIN_PASS", "")
	t.Setenv("MISSING_GW_SECRET", "")

	dir := t.TempDir()
	prev := cfgFile
	t.Cleanup(func() { cfgFile = prev })

	t.Run("valid", func(t *testing.T) {
		cfgFile = filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(cfgFile, []byte(`
hub:
  url: http://hub.internal:8000
gateway:
  url: http://gw.internal:4444
  token: ${MISSING_GW_SECRET}
`), 0o644))

		c, out := newCaptured()
		require.NoError(t, runTestConfig(c, nil))

		s := out.String()
		assert.Contains(t, s, "Hub: http://hub.internal:8000")
		assert.Contains(t, s, "***6789 (fingerprint ")
		assert.NotContains(t, s, "hub-token-0123456789")
		assert.Contains(t, s, "Gateway Token: not set")
		assert.Contains(t, s, "Secret variable MISSING_GW_SECRET is not set")
		assert.Contains(t, s, "Default console password in use")
		assert.Contains(t, s, "Configuration is valid")
	})

	t.Run("invalid", func(t *testing.T) {
		cfgFile = filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(cfgFile, []byte("hub:\n  url: ftp://x\nkvs:\n  type: etcd\n"), 0o644))

		c, _ := newCaptured()
		err := runTestConfig(c, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("missing file", func(t *testing.T) {
		cfgFile = filepath.Join(dir, "nope.yaml")
		c, _ := newCaptured()
		assert.Error(t, runTestConfig(c, nil))
	})
}
