// Package util holds the small file and subprocess helpers shared by
// muster's packages.
package util

import (
	"encoding/json"
	"os"
)

// AtomicWriteJSON persists v as indented JSON through AtomicWriteFile.
// The state file and task records go through this helper, so a crash
// mid-write never leaves a half-written document for the next reader.
func AtomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(path, data, 0644)
}

// AtomicWriteFile writes data to a sibling .tmp file and renames it over
// path. Rename is atomic on POSIX filesystems: a reader sees either the
// old content or the new, never a prefix. Concurrent writers are the
// caller's problem; in muster every writer holds the depot state lock.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
