// Package paths provides cross-platform path utilities for Weevil.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultModelsDir returns the default directory scanned for model
// subdirectories: ~/.weevil/models, or ./models when no home directory can
// be determined.
func DefaultModelsDir() string {
	return defaultDir("models")
}

// DefaultCacheDir returns the directory used for downloaded resources.
// Remote resources resolved by the resources package land here, keyed by URL hash.
func DefaultCacheDir() string {
	return defaultDir("cache")
}

func defaultDir(name string) string {
	home := userHomeDir()
	if home == "" {
		return filepath.FromSlash("./" + name)
	}
	return filepath.Join(home, ".weevil", name)
}

// userHomeDir resolves the user's home directory. On Windows USERPROFILE is
// checked before HOME, since $HOME under Git Bash/MSYS2 may hold a
// Unix-style path that Windows APIs cannot open.
func userHomeDir() string {
	if runtime.GOOS == "windows" {
		if home := os.Getenv("USERPROFILE"); home != "" {
			return home
		}
		if drive, path := os.Getenv("HOMEDRIVE"), os.Getenv("HOMEPATH"); drive != "" && path != "" {
			return filepath.Join(drive, path)
		}
	}
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}
