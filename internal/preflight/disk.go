package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
)

// DefaultMinFreeBytes is the free space an index directory needs for the
// lexical segments and the embeddings snapshot.
const DefaultMinFreeBytes uint64 = 100 * humanize.MiByte

// WithMinFreeBytes overrides the free space required by CheckDiskSpace.
func WithMinFreeBytes(n uint64) Option {
	return func(c *Checker) {
		c.minFree = n
	}
}

// CheckDiskSpace checks the free space on the volume that holds indexDir.
// The directory need not exist yet; its nearest existing parent is measured.
func (c *Checker) CheckDiskSpace(indexDir string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
		Details:  indexDir,
	}

	free, err := c.freeSpace(existingAncestor(indexDir))
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%s free (minimum: %s)", humanize.IBytes(free), humanize.IBytes(c.minFree))
	if free < c.minFree {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// statfsFree returns the bytes available to unprivileged users at path.
func statfsFree(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// existingAncestor walks up from path to the first directory that exists.
func existingAncestor(path string) string {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
