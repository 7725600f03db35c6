package utils

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LatestModTime walks path and returns the newest modification time found.
// Inputs to a build target may be whole directory trees (a source folder,
// node_modules), so a plain stat of the root is not enough.
func LatestModTime(path string) (time.Time, error) {
	var latest time.Time
	err := filepath.Walk(path, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return latest, nil
}

// OldestModTime returns the oldest modification time across paths. The
// second return value reports whether every path exists; a missing path
// short-circuits since the caller treats it as stale anyway.
func OldestModTime(paths []string) (time.Time, bool, error) {
	var oldest time.Time
	for i, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		if err != nil {
			return time.Time{}, false, err
		}
		mt := info.ModTime()
		if info.IsDir() {
			// For directory outputs the tree's newest entry stands in
			// for the artifact's timestamp.
			mt, err = LatestModTime(p)
			if err != nil {
				return time.Time{}, false, err
			}
		}
		if i == 0 || mt.Before(oldest) {
			oldest = mt
		}
	}
	return oldest, true, nil
}
