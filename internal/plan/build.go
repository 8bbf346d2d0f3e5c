package plan

import (
	"context"

	"github.com/chaseruskin/orbit/internal/builddriver"
	"github.com/chaseruskin/orbit/internal/config"
)

// RunTarget spawns target's configured command against an already-emitted
// TargetPlan, with passThru appended after the target's own declared
// arguments.
func RunTarget(ctx context.Context, target config.Target, tp *TargetPlan, passThru []string) (builddriver.Result, error) {
	return builddriver.Run(ctx, builddriver.Invocation{
		Target:   target,
		PassThru: passThru,
		WorkDir:  tp.WorkDir,
		Env:      tp.Env,
	})
}
