package dst

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chaseruskin/orbit/internal/hdl"
)

// languageOf mirrors internal/unitgraph's extension-to-dialect mapping; a
// false second result means the file is out of DST's scope and is copied
// through unchanged.
func languageOf(path string) (hdl.Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vhd", ".vhdl":
		return hdl.VHDL, true
	case ".v", ".sv", ".svh":
		return hdl.SystemVerilog, true
	default:
		return 0, false
	}
}

// ApplyToTree materializes one package instance's dynamic variant: every
// file under srcRoot is copied into destRoot, with HDL files additionally
// rewritten per targets (old canonical identifier -> new identifier,
// typically the Identifier/NewIdentifier pairs from one package's slice of
// Plan.ByPackage). It reports whether any file in the tree was actually
// rewritten, so a caller can skip minting a new cache slot when a
// package's rewrite targets happen not to intersect its own source (e.g.
// an ancestor package propagated into scope by Propagate that does not
// itself reference the rewritten identifier under any path DST walks).
func ApplyToTree(srcRoot, destRoot string, targets map[string]string) (bool, error) {
	changedAny := false

	err := filepath.WalkDir(srcRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(srcRoot, path)
		if relErr != nil {
			return relErr
		}

		if rel == "." {
			return os.MkdirAll(destRoot, 0o755)
		}

		destPath := filepath.Join(destRoot, rel)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0o755)
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		out := src

		if lang, ok := languageOf(path); ok {
			rewritten, changed, err := RewriteSource(path, src, lang, targets)
			if err != nil {
				return err
			}

			if changed {
				out = rewritten
				changedAny = true
			}
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}

		return os.WriteFile(destPath, out, 0o644)
	})
	if err != nil {
		return false, fmt.Errorf("dst: applying rewrite tree %s -> %s: %w", srcRoot, destRoot, err)
	}

	return changedAny, nil
}
