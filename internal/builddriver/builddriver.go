// Package builddriver implements Orbit's build driver: spawning a single
// target's configured command against a blueprint, nothing more. Orbit
// never interprets a target's output — it streams through unchanged and
// the child's exit status becomes the driver's own result.
package builddriver

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/chaseruskin/orbit/internal/config"
)

// Invocation is everything one target run needs: the configured command
// plus its declared args, the pass-through arguments given after `--` on
// the command line, the working directory (the target's output
// directory), and the process environment (ORBIT_* plus any [env]
// exports, built by internal/blueprint).
type Invocation struct {
	Target   config.Target
	PassThru []string
	WorkDir  string
	Env      map[string]string
}

// Result reports a finished invocation's outcome.
type Result struct {
	ExitCode int
}

// Run spawns target.Command with target.Args followed by PassThru,
// working directory WorkDir, and environment Env, streaming the child's
// stdout/stderr/stdin through unchanged. It returns a non-nil error only
// when the command itself could not be started (the configured command is
// missing, WorkDir does not exist, and similar); a target that runs and
// exits non-zero is reported through Result.ExitCode with a nil error,
// since a failing target is an expected outcome, not a driver fault.
func Run(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Target.Command == "" {
		return Result{}, fmt.Errorf("builddriver: target %q has no configured command", inv.Target.Name)
	}

	args := make([]string, 0, len(inv.Target.Args)+len(inv.PassThru))
	args = append(args, inv.Target.Args...)
	args = append(args, inv.PassThru...)

	cmd := exec.CommandContext(ctx, inv.Target.Command, args...)
	cmd.Dir = inv.WorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = mergeProcessEnv(inv.Env)

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return Result{ExitCode: exitErr.ExitCode()}, nil
	}

	return Result{}, fmt.Errorf("builddriver: running target %q: %w", inv.Target.Name, err)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}

	return false
}

// mergeProcessEnv layers env on top of the driver's own process
// environment, so a target command still sees PATH and the rest of the
// ambient environment alongside its ORBIT_* variables.
func mergeProcessEnv(env map[string]string) []string {
	base := os.Environ()

	out := make([]string, 0, len(base)+len(env))
	out = append(out, base...)

	for k, v := range env {
		out = append(out, k+"="+v)
	}

	return out
}
