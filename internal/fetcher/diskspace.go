package fetcher

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DiskSpace represents available disk space information
type DiskSpace struct {
	Available uint64
	Free      uint64
	Total     uint64
	UsedPct   float64
}

// GetDiskSpace returns disk space information for the filesystem holding the
// given path, walking up to the closest existing directory
func GetDiskSpace(path string) (*DiskSpace, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	checkPath := absPath
	for {
		if _, err := os.Stat(checkPath); err == nil {
			break
		}
		parent := filepath.Dir(checkPath)
		if parent == checkPath {
			return nil, fmt.Errorf("no existing directory found in path")
		}
		checkPath = parent
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(checkPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to get filesystem stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	available := stat.Bavail * uint64(stat.Bsize)
	used := total - free
	usedPct := float64(used) / float64(total) * 100

	return &DiskSpace{
		Available: available,
		Free:      free,
		Total:     total,
		UsedPct:   usedPct,
	}, nil
}
