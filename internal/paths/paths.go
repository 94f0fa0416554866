package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeEnvVar overrides the storage directory
	HomeEnvVar = "LIVECHECK_HOME"

	// DefaultHome is the storage directory name under the user's home
	DefaultHome = ".livecheck"

	// DatabaseFile is the single database file kept per storage directory
	DatabaseFile = "livecheck.db"

	// KeyFile holds the key used to seal credentials at rest
	KeyFile = "credentials.key"
)

// GetHome returns the storage directory.
// LIVECHECK_HOME wins; otherwise ~/.livecheck.
func GetHome() (string, error) {
	if env := os.Getenv(HomeEnvVar); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultHome), nil
}

// EnsureDir creates dir (and parents) if missing and returns it.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DatabasePath returns the database file path inside a storage directory
func DatabasePath(storageDir string) string {
	return filepath.Join(storageDir, DatabaseFile)
}

// KeyPath returns the credential key path inside a storage directory
func KeyPath(storageDir string) string {
	return filepath.Join(storageDir, KeyFile)
}

// LogPath returns the client log path inside a storage directory
func LogPath(storageDir string) string {
	return filepath.Join(storageDir, "logs", "livecheck.log")
}

// CanonicalizePath converts a file path into the key used for history and
// scan sessions: absolute, cleaned, symlinks resolved when the file exists.
func CanonicalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			return filepath.Clean(abs), nil
		}
		return "", err
	}
	return resolved, nil
}

// FileURI returns a file:// URI for an absolute path
func FileURI(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}

// PathFromURI is the inverse of FileURI. Non-file URIs are returned unchanged.
func PathFromURI(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	p := strings.TrimPrefix(uri, "file://")
	// Windows drive letters: /C:/x -> C:/x
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}
