package catalog

import (
	"strings"

	"github.com/chaseruskin/orbit/internal/semver"
)

// parseSnapshotVersion parses an archive-tier filename of the form
// "<version>-<checksum-prefix>.tar.gz" and returns its version.
func parseSnapshotVersion(filename string) (semver.Version, bool) {
	base := strings.TrimSuffix(filename, ".tar.gz")
	if base == filename {
		return semver.Version{}, false
	}

	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return semver.Version{}, false
	}

	v, err := semver.Parse(base[:idx])
	if err != nil {
		return semver.Version{}, false
	}

	return v, true
}

// parseSlotDirName parses a cache-tier slot directory name of the form
// "<name>-<version>-<checksum-prefix>" back into its components. Package
// names may themselves contain hyphens, so the version and checksum
// prefix are taken from the trailing two hyphen-delimited fields and the
// remainder is the name.
func parseSlotDirName(dirName string) (CacheSlot, bool) {
	parts := strings.Split(dirName, "-")
	if len(parts) < 3 {
		return CacheSlot{}, false
	}

	prefix := parts[len(parts)-1]
	verStr := parts[len(parts)-2]
	name := strings.Join(parts[:len(parts)-2], "-")

	v, err := semver.Parse(verStr)
	if err != nil {
		return CacheSlot{}, false
	}

	return CacheSlot{Name: name, Version: v, ChecksumPrefix: prefix}, true
}
