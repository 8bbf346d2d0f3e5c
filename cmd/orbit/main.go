// Command orbit is the thin entry point that drives the core pipeline
// (internal/plan) end to end: resolve/lock, scan, rewrite, emit a
// blueprint, and spawn a target's build driver. The argument parser
// itself is deliberately thin; it exists only so that core is reachable
// from a shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chaseruskin/orbit/internal/catalog"
	"github.com/chaseruskin/orbit/internal/cli"
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/plan"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	var err error

	switch sub {
	case "help", "-h", "--help":
		usage()

		return
	case "version", "-v", "--version":
		cli.PrintVersion("orbit")

		return
	case "lock":
		err = runLock(args)
	case "tree":
		err = runTree(args)
	case "build":
		err = runBuild(args, false)
	case "test":
		err = runBuild(args, true)
	case "run":
		err = runRun(args)
	default:
		fmt.Fprintf(os.Stderr, "orbit: unknown command %q\n", sub)
		usage()
		os.Exit(2)
	}

	if err != nil {
		cli.ExitWithError("%v", err)
	}
}

func usage() {
	cli.PrintUsage("orbit", []cli.CommandInfo{
		{Name: "lock", Description: "resolve dependencies and write Orbit.lock"},
		{Name: "tree", Description: "print the resolved dependency tree"},
		{Name: "build", Description: "resolve, scan, and emit a target's blueprint"},
		{Name: "test", Description: "like build, with --bench/--dut and the target run"},
		{Name: "run", Description: "build and spawn a target's configured command"},
		{Name: "version", Description: "print version information"},
	})
}

// environment bundles the working directory's manifest, config, and
// catalog index every subcommand needs.
type environment struct {
	localDir string
	cat      *catalog.Catalog
	cfg      *config.Config
}

func loadEnvironment(localDir string) (*environment, error) {
	abs, err := filepath.Abs(localDir)
	if err != nil {
		return nil, fmt.Errorf("orbit: resolving %s: %w", localDir, err)
	}

	globalPath, err := globalConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(abs, globalPath)
	if err != nil {
		return nil, fmt.Errorf("orbit: loading configuration: %w", err)
	}

	channelRoot, archiveRoot, cacheRoot, err := catalogRoots(cfg)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Build(channelRoot, archiveRoot, cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("orbit: indexing catalog: %w", err)
	}

	return &environment{localDir: abs, cat: cat, cfg: cfg}, nil
}

// globalConfigPath names the user-level config.toml, loaded as the
// lowest-precedence scope in internal/config's layered merge.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("orbit: locating home directory: %w", err)
	}

	return filepath.Join(home, ".orbit", "config.toml"), nil
}

// catalogRoots returns the three catalog tiers' roots, honoring whatever
// internal/config resolved from [general] and falling back to
// ~/.orbit/{channel,archive,cache} otherwise.
func catalogRoots(cfg *config.Config) (channelRoot, archiveRoot, cacheRoot string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", "", fmt.Errorf("orbit: locating home directory: %w", err)
	}

	channelRoot = cfg.General.ChannelRoot
	if channelRoot == "" {
		channelRoot = filepath.Join(home, ".orbit", "channel")
	}

	archiveRoot = cfg.General.ArchiveRoot
	if archiveRoot == "" {
		archiveRoot = filepath.Join(home, ".orbit", "archive")
	}

	cacheRoot = cfg.General.CacheRoot
	if cacheRoot == "" {
		cacheRoot = filepath.Join(home, ".orbit", "cache")
	}

	return channelRoot, archiveRoot, cacheRoot, nil
}

func runLock(args []string) error {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	dir := fs.String("dir", ".", "local package directory")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	log := cli.NewLogger(*verbose, false)

	env, err := loadEnvironment(*dir)
	if err != nil {
		return err
	}

	g, err := plan.Build(context.Background(), env.localDir, env.cat, env.cfg)
	if err != nil {
		return err
	}

	if g.Lock.Recomputed {
		log.Info("resolved closure changed, Orbit.lock rewritten")
	} else {
		log.Info("Orbit.lock already fresh")
	}

	fmt.Printf("%d packages in the resolved closure\n", len(g.Packages))

	return nil
}

func runTree(args []string) error {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	dir := fs.String("dir", ".", "local package directory")
	_ = fs.Parse(args)

	env, err := loadEnvironment(*dir)
	if err != nil {
		return err
	}

	g, err := plan.Build(context.Background(), env.localDir, env.cat, env.cfg)
	if err != nil {
		return err
	}

	var localKey string

	for _, p := range g.Packages {
		if p.IsLocal {
			localKey = p.Key()
		}
	}

	printTree(g, localKey, 0, map[string]bool{})

	return nil
}

func printTree(g *plan.Graph, key string, depth int, visiting map[string]bool) {
	if visiting[key] {
		fmt.Printf("%s%s (cycle)\n", strings.Repeat("  ", depth), key)

		return
	}

	visiting[key] = true
	defer delete(visiting, key)

	fmt.Printf("%s%s\n", strings.Repeat("  ", depth), key)

	deps := append([]string(nil), g.Package.GetDependencies(key)...)
	sort.Strings(deps)

	for _, dep := range deps {
		printTree(g, dep, depth+1, visiting)
	}
}

func runBuild(args []string, isTest bool) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	dir := fs.String("dir", ".", "local package directory")
	target := fs.String("target", "", "[[target]] to emit a blueprint for")
	top := fs.String("top", "", "top-level design unit")
	bench := fs.String("bench", "", "testbench unit (test only)")
	dut := fs.String("dut", "", "device-under-test unit (defaults to --top)")
	out := fs.String("output", "build", "output directory root")
	_ = fs.Parse(args)

	if *target == "" {
		return fmt.Errorf("orbit: --target is required")
	}

	dutName := *dut
	if dutName == "" {
		dutName = *top
	}

	env, err := loadEnvironment(*dir)
	if err != nil {
		return err
	}

	g, err := plan.Build(context.Background(), env.localDir, env.cat, env.cfg)
	if err != nil {
		return err
	}

	root, err := manifest.Load(env.localDir)
	if err != nil {
		return fmt.Errorf("orbit: loading local manifest: %w", err)
	}

	tp, err := plan.EmitTarget(g, root, env.localDir, env.cfg, *target, *top, *bench, dutName, *out)
	if err != nil {
		return err
	}

	fmt.Println(tp.BlueprintPath)

	if !isTest {
		return nil
	}

	res, err := plan.RunTarget(context.Background(), env.cfg.Target[*target], tp, passThruArgs())
	if err != nil {
		return err
	}

	os.Exit(res.ExitCode)

	return nil
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("dir", ".", "local package directory")
	target := fs.String("target", "", "[[target]] to build and spawn")
	top := fs.String("top", "", "top-level design unit")
	out := fs.String("output", "build", "output directory root")
	_ = fs.Parse(args)

	if *target == "" {
		return fmt.Errorf("orbit: --target is required")
	}

	env, err := loadEnvironment(*dir)
	if err != nil {
		return err
	}

	g, err := plan.Build(context.Background(), env.localDir, env.cat, env.cfg)
	if err != nil {
		return err
	}

	root, err := manifest.Load(env.localDir)
	if err != nil {
		return fmt.Errorf("orbit: loading local manifest: %w", err)
	}

	tp, err := plan.EmitTarget(g, root, env.localDir, env.cfg, *target, *top, "", *top, *out)
	if err != nil {
		return err
	}

	res, err := plan.RunTarget(context.Background(), env.cfg.Target[*target], tp, passThruArgs())
	if err != nil {
		return err
	}

	os.Exit(res.ExitCode)

	return nil
}

// passThruArgs returns every argument after the first literal "--" on
// the original command line, forwarded verbatim to the target's command.
func passThruArgs() []string {
	for i, a := range os.Args {
		if a == "--" {
			return os.Args[i+1:]
		}
	}

	return nil
}
