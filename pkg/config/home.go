package config

import (
	"os"
	"path/filepath"
	"sync"
)

// EnvHome overrides the project home.
const EnvHome = "APPIUM_POM_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the project home directory.
//
// Resolution order:
//  1. $APPIUM_POM_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// InHome resolves rel against the home directory. Absolute paths are returned as is.
func InHome(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(GetHome(), rel)
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(EnvHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/appium-pom, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
