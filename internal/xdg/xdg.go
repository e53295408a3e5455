// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package xdg resolves XDG Base Directory paths for the service.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "authsvc"
	configFileName = "config.yaml"
)

// Getenv looks up an environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

// ConfigDir returns the config directory for the service.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir(getenv Getenv) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		home := getenv("HOME")
		if home == "" {
			return "", oops.Code("XDG_NO_HOME").Errorf("neither XDG_CONFIG_HOME nor HOME is set")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigFile returns the path of config.yaml in ConfigDir.
func DefaultConfigFile(getenv Getenv) (string, error) {
	dir, err := ConfigDir(getenv)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// FindConfigFile returns DefaultConfigFile when that file exists and ""
// when it does not.
func FindConfigFile(getenv Getenv) (string, error) {
	path, err := DefaultConfigFile(getenv)
	if err != nil {
		return "", err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		// Unreadable but present; let the loader report it.
		return path, nil
	}
}
