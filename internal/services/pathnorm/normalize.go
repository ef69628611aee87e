// Package pathnorm implements C2: canonicalization of filesystem paths into
// stable lock keys.
package pathnorm

import (
	"errors"
	"strings"
)

var ErrEmptyPath = errors.New("path is empty or whitespace")

// Normalize implements §4.1: trim whitespace, strip trailing separators,
// unify separator spelling, and fold case. It is idempotent and treats two
// paths as equal iff they differ only by case, trailing separators, or
// backslash/forward-slash spelling.
func Normalize(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	for {
		l := len(trimmed)
		trimmed = strings.TrimRight(trimmed, "/\\")
		if len(trimmed) == l {
			break
		}
	}
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	return strings.ToLower(trimmed), nil
}

// FolderLockKey derives the lock-table key for a folder path.
func FolderLockKey(p string) (string, error) {
	norm, err := Normalize(p)
	if err != nil {
		return "", err
	}
	return "folder_lock:" + norm, nil
}
