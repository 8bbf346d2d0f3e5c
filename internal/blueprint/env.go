package blueprint

import "github.com/chaseruskin/orbit/internal/config"

// EnvContext is the fixed set of values every build invocation needs to
// see, regardless of which target or protocol is running.
type EnvContext struct {
	IPPath      string
	IPName      string
	IPLibrary   string
	IPVersion   string
	Target      string
	TargetDir   string
	Blueprint   string
	Top         string
	Bench       string
	Dut         string
	OutputPath  string
}

// Env renders the fixed ORBIT_* variables. Callers merge this with
// the config's [env] section, exported through config.Config.EnvExportName,
// to build a target process's full environment.
func (e EnvContext) Env() map[string]string {
	return map[string]string{
		"ORBIT_IP_PATH":     e.IPPath,
		"ORBIT_IP_NAME":     e.IPName,
		"ORBIT_IP_LIBRARY":  e.IPLibrary,
		"ORBIT_IP_VERSION":  e.IPVersion,
		"ORBIT_TARGET":      e.Target,
		"ORBIT_TARGET_DIR":  e.TargetDir,
		"ORBIT_BLUEPRINT":   e.Blueprint,
		"ORBIT_TOP":         e.Top,
		"ORBIT_BENCH":       e.Bench,
		"ORBIT_DUT":         e.Dut,
		"ORBIT_OUTPUT_PATH": e.OutputPath,
	}
}

// MergeConfigEnv adds cfg's [env] section on top of e's fixed variables,
// each key exported as ORBIT_ENV_<UPPERCASED_KEY> per
// config.Config.EnvExportName. Fixed ORBIT_* keys take precedence: a
// config.toml cannot shadow the build-identity variables.
func MergeConfigEnv(env map[string]string, cfg *config.Config) map[string]string {
	if cfg == nil {
		return env
	}

	for k, v := range cfg.Env {
		name := cfg.EnvExportName(k)
		if _, exists := env[name]; !exists {
			env[name] = v
		}
	}

	return env
}
