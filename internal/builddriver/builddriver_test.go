package builddriver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chaseruskin/orbit/internal/config"
)

func TestRunStreamsExitCodeOnFailure(t *testing.T) {
	dir := t.TempDir()

	inv := Invocation{
		Target:  config.Target{Name: "fail", Command: "sh", Args: []string{"-c", "exit 3"}},
		WorkDir: dir,
	}

	res, err := Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRunSucceedsAndReportsZero(t *testing.T) {
	dir := t.TempDir()

	inv := Invocation{
		Target:  config.Target{Name: "ok", Command: "sh", Args: []string{"-c", "exit 0"}},
		WorkDir: dir,
	}

	res, err := Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRunUsesWorkDirAndPassThruArgs(t *testing.T) {
	dir := t.TempDir()

	inv := Invocation{
		Target:   config.Target{Name: "touch", Command: "sh", Args: []string{"-c", "echo -n \"$1\" > marker.txt", "--"}},
		PassThru: []string{"hello"},
		WorkDir:  dir,
	}

	if _, err := Run(context.Background(), inv); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	if err != nil {
		t.Fatalf("reading marker: %v", err)
	}

	if string(data) != "hello" {
		t.Errorf("marker contents = %q, want hello (child must run in WorkDir with pass-through args)", data)
	}
}

func TestRunErrorsWhenCommandMissing(t *testing.T) {
	inv := Invocation{Target: config.Target{Name: "nocmd"}}

	if _, err := Run(context.Background(), inv); err == nil {
		t.Fatalf("expected an error when the target has no configured command")
	}
}

func TestRunPropagatesEnv(t *testing.T) {
	dir := t.TempDir()

	inv := Invocation{
		Target:  config.Target{Name: "env", Command: "sh", Args: []string{"-c", "echo -n \"$ORBIT_TARGET\" > env.txt"}},
		WorkDir: dir,
		Env:     map[string]string{"ORBIT_TARGET": "sim"},
	}

	if _, err := Run(context.Background(), inv); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "env.txt"))
	if err != nil {
		t.Fatalf("reading env marker: %v", err)
	}

	if string(data) != "sim" {
		t.Errorf("ORBIT_TARGET seen by child = %q, want sim", data)
	}
}
