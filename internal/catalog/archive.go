package catalog

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chaseruskin/orbit/internal/checksum"
	"github.com/chaseruskin/orbit/internal/semver"
)

// WriteSnapshot compresses sourceTree into the archive tier as a gzip'd
// tar: one archive per whole package tree, keyed by version and
// checksum prefix so two content-distinct installs of the same version
// never collide.
func (c *Catalog) WriteSnapshot(name string, version string, checksumPrefix string, sourceTree string) (string, error) {
	dir := filepath.Join(c.ArchiveRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	dest := filepath.Join(dir, fmt.Sprintf("%s-%s.tar.gz", version, checksumPrefix))

	tmp := dest + ".tmp"

	if err := writeTarGz(tmp, sourceTree); err != nil {
		os.Remove(tmp)

		return "", err
	}

	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}

	return dest, nil
}

func writeTarGz(dest, sourceTree string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	return filepath.Walk(sourceTree, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(sourceTree, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(tw, src)

		return err
	})
}

// InstallFromQueue decompresses an archive-tier snapshot into a new cache
// slot, writes the .orbit-checksum marker, and marks the slot read-only.
// Re-installing where a matching slot already exists is a no-op unless
// force is set.
func (c *Catalog) InstallFromQueue(name string, version string, snapshotPath string, force bool) (CacheSlot, error) {
	tmpDir, err := os.MkdirTemp(c.CacheRoot, ".orbit-install-*")
	if err != nil {
		return CacheSlot{}, err
	}
	defer os.RemoveAll(tmpDir)

	if err := extractTarGz(snapshotPath, tmpDir); err != nil {
		return CacheSlot{}, err
	}

	fp, err := checksum.Fingerprint(tmpDir, nil)
	if err != nil {
		return CacheSlot{}, err
	}

	prefix := fp.Tag(10)

	slot := CacheSlot{Name: name, ChecksumPrefix: prefix}

	if v, perr := semver.Parse(version); perr == nil {
		slot.Version = v
	}

	slotPath := filepath.Join(c.CacheRoot, slot.dirName())

	if _, statErr := os.Stat(slotPath); statErr == nil && !force {
		slot.Path = slotPath
		c.InsertInstall(slot)

		return slot, nil
	}

	if err := os.RemoveAll(slotPath); err != nil {
		return CacheSlot{}, err
	}

	if err := os.Rename(tmpDir, slotPath); err != nil {
		return CacheSlot{}, err
	}

	if err := os.WriteFile(filepath.Join(slotPath, ".orbit-checksum"), []byte(string(fp)), 0o444); err != nil {
		return CacheSlot{}, err
	}

	if err := markReadOnly(slotPath); err != nil {
		return CacheSlot{}, err
	}

	slot.Path = slotPath
	c.InsertInstall(slot)

	return slot, nil
}

func extractTarGz(src, destDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return err
		}

		target := filepath.Join(destDir, hdr.Name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}

			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}

			if _, err := io.Copy(out, tr); err != nil {
				out.Close()

				return err
			}

			out.Close()
		}
	}

	return nil
}

// markReadOnly strips write permission from every file and directory in
// slotPath, so an installed package tree can't be mutated in place.
func markReadOnly(slotPath string) error {
	return filepath.Walk(slotPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		mode := info.Mode().Perm() &^ 0o222

		return os.Chmod(path, mode)
	})
}
