package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizePath returns the cleaned, absolute, slash separated form of path.
// Library identifiers are compared in this form.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// SamePath reports whether a and b name the same location once normalized.
func SamePath(a, b string) bool {
	return NormalizePath(a) == NormalizePath(b)
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// PathExists reports whether anything exists at path.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Extension returns the lower-cased extension of path including the dot.
func Extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
