package plan

import (
	"fmt"
	"path/filepath"

	"github.com/chaseruskin/orbit/internal/blueprint"
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/substitution"
)

// TargetPlan is everything needed to run one target: the written
// blueprint's absolute path, and the full process environment to launch
// the target's command in.
type TargetPlan struct {
	BlueprintPath string
	WorkDir       string
	Env           map[string]string
}

// EmitTarget resolves one named target from cfg, expands its fileset
// patterns, writes the blueprint into outputRoot/name, and assembles the
// full ORBIT_*/ORBIT_ENV_* environment to run it in.
func EmitTarget(g *Graph, root *manifest.Manifest, localDir string, cfg *config.Config, targetName, top, bench, dut string, outputRoot string) (*TargetPlan, error) {
	target, ok := cfg.Target[targetName]
	if !ok {
		return nil, fmt.Errorf("plan: no [[target]] named %q is configured", targetName)
	}

	resolver := substitution.MapResolver{
		"orbit.top":   top,
		"orbit.bench": bench,
	}

	for k, v := range cfg.Env {
		resolver["orbit.env."+k] = v
	}

	bp, err := blueprint.Emit(g.Packages, g.Package, g.Units, target, resolver)
	if err != nil {
		return nil, fmt.Errorf("plan: emitting blueprint for target %q: %w", targetName, err)
	}

	workDir := filepath.Join(outputRoot, targetName)

	bpPath, err := blueprint.WriteFile(workDir, bp)
	if err != nil {
		return nil, err
	}

	envCtx := blueprint.EnvContext{
		IPPath:     localDir,
		IPName:     root.Name,
		IPLibrary:  root.EffectiveLibrary(),
		IPVersion:  root.Version.String(),
		Target:     targetName,
		TargetDir:  workDir,
		Blueprint:  bpPath,
		Top:        top,
		Bench:      bench,
		Dut:        dut,
		OutputPath: workDir,
	}

	env := blueprint.MergeConfigEnv(envCtx.Env(), cfg)

	return &TargetPlan{BlueprintPath: bpPath, WorkDir: workDir, Env: env}, nil
}
