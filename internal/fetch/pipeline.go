package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/chaseruskin/orbit/internal/catalog"
	"github.com/chaseruskin/orbit/internal/checksum"
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/ident"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/substitution"
)

// Request names the package the pipeline is fetching.
type Request struct {
	Name    string
	Version string
	Source  manifest.Source
}

// Result is the outcome of a full fetch/install run: the archive-tier
// snapshot path and the resulting cache slot.
type Result struct {
	SnapshotPath string
	Slot         catalog.CacheSlot
}

// Run executes the full fetch pipeline: select protocol, create a queue
// directory, invoke the protocol, detect the package root, archive, and
// install. force bypasses the "matching slot already exists" no-op.
func Run(ctx context.Context, cat *catalog.Catalog, cfg *config.Config, req Request, force bool) (Result, error) {
	proto := ResolveProtocol(cfg, req.Source.Protocol)

	queueRoot := filepath.Join(cat.CacheRoot, ".orbit-queue")
	if err := os.MkdirAll(queueRoot, 0o755); err != nil {
		return Result{}, err
	}

	queue, err := os.MkdirTemp(queueRoot, req.Name+"-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(queue)

	vars := substitution.MapResolver{
		"orbit.queue":              queue,
		"orbit.ip.name":            req.Name,
		"orbit.ip.version":         req.Version,
		"orbit.ip.source.url":      req.Source.URL,
		"orbit.ip.source.protocol": req.Source.Protocol,
		"orbit.ip.source.tag":      req.Source.Tag,
	}

	if proto.IsDefault() {
		if err := defaultHTTPZip(ctx, req.Source.URL, queue); err != nil {
			return Result{}, err
		}
	} else {
		if err := namedExternalCommand(ctx, proto, vars, queue); err != nil {
			return Result{}, err
		}
	}

	root, err := detectPackageRoot(queue, req.Name)
	if err != nil {
		return Result{}, err
	}

	fp, err := checksum.Fingerprint(root, nil)
	if err != nil {
		return Result{}, err
	}

	prefix := fp.Tag(10)

	// WriteSnapshot/InstallFromQueue mutate the shared archive/cache roots;
	// hold the cache-root lock across both so a concurrent orbit process
	// fetching the same dependency can't interleave a partial install.
	lock, err := catalog.Acquire(ctx, cat.CacheRoot)
	if err != nil {
		return Result{}, err
	}
	defer lock.Release()

	snapshotPath, err := cat.WriteSnapshot(req.Name, req.Version, prefix, root)
	if err != nil {
		return Result{}, err
	}

	slot, err := cat.InstallFromQueue(req.Name, req.Version, snapshotPath, force)
	if err != nil {
		return Result{}, err
	}

	return Result{SnapshotPath: snapshotPath, Slot: slot}, nil
}

// defaultHTTPZip downloads url, verifies the response is a zip archive,
// and extracts it into dest. This is the default protocol's fetch step.
func defaultHTTPZip(ctx context.Context, url string, dest string) error {
	client := NewHTTPClient()
	defer ShutdownClient(client)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("fetch: %s: not a zip archive: %w", url, err)
	}

	for _, f := range zr.File {
		target := filepath.Join(dest, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := extractZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)

	return err
}

// namedExternalCommand spawns the protocol's configured command with the
// queue directory as its working directory, surfacing stderr verbatim on
// a non-zero exit.
func namedExternalCommand(ctx context.Context, proto Protocol, vars substitution.Resolver, queue string) error {
	args := ArgVector(proto, vars)

	cmd := exec.CommandContext(ctx, proto.Named.Command, args...)
	cmd.Dir = queue

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("fetch: protocol %q failed: %w: %s", proto.Named.Name, err, stderr.String())
	}

	return nil
}

// detectPackageRoot finds the first directory under queue containing a
// valid Orbit.toml whose name matches the requested package.
func detectPackageRoot(queue string, wantName string) (string, error) {
	var found string

	err := filepath.WalkDir(queue, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if found != "" {
			return filepath.SkipAll
		}

		if !d.IsDir() {
			return nil
		}

		m, loadErr := manifest.Load(path)
		if loadErr != nil {
			return nil
		}

		if ident.SameName(m.Name, wantName) {
			found = path
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if found == "" {
		return "", fmt.Errorf("fetch: no package root matching %q found in downloaded archive", wantName)
	}

	return found, nil
}
