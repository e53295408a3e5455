// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-yc-kim/tst-auth-svc/pkg/errutil"
)

func envOf(vars map[string]string) Getenv {
	return func(key string) string { return vars[key] }
}

func TestConfigDir(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"xdg override", map[string]string{"XDG_CONFIG_HOME": "/custom/config", "HOME": "/home/u"}, "/custom/config/authsvc"},
		{"home fallback", map[string]string{"HOME": "/home/testuser"}, "/home/testuser/.config/authsvc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfigDir(envOf(tt.env))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigDir_NoHome(t *testing.T) {
	_, err := ConfigDir(envOf(nil))
	errutil.AssertErrorCode(t, err, "XDG_NO_HOME")
}

func TestConfigDir_ProcessEnvironment(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/from/process")
	got, err := ConfigDir(nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/process/authsvc", got)
}

func TestFindConfigFile(t *testing.T) {
	base := t.TempDir()
	env := envOf(map[string]string{"XDG_CONFIG_HOME": base})

	got, err := FindConfigFile(env)
	require.NoError(t, err)
	assert.Empty(t, got, "missing file is not an error")

	want := filepath.Join(base, "authsvc", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o700))
	require.NoError(t, os.WriteFile(want, []byte("port: 8000\n"), 0o600))

	got, err = FindConfigFile(env)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
