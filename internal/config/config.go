// Package config implements Orbit's layered configuration file: local
// (package), parent chain, include-listed, and global scopes, in
// decreasing precedence, merged field-by-field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Target is a [[target]] entry: a user-configured command invoked during
// the build execution stage.
type Target struct {
	Name    string   `toml:"name"`
	Command string   `toml:"command"`
	Args    []string `toml:"args,omitempty"`
	Fileset map[string]string `toml:"fileset,omitempty"`
}

// Protocol is a [[protocol]] entry: a user-configured command used to
// fetch a package.
type Protocol struct {
	Name    string   `toml:"name"`
	Command string   `toml:"command"`
	Args    []string `toml:"args,omitempty"`
}

// Channel is a [[channel]] entry: a discovery/publication index source.
type Channel struct {
	Name string `toml:"name"`
	Path string `toml:"path,omitempty"`
	Sync string `toml:"sync,omitempty"`
}

// General holds [general] scalar settings.
type General struct {
	CacheRoot   string `toml:"cache-path,omitempty"`
	ArchiveRoot string `toml:"archive-path,omitempty"`
	ChannelRoot string `toml:"channel-path,omitempty"`
}

// file is the on-disk shape of one configuration file.
type file struct {
	Include  []string          `toml:"include,omitempty"`
	General  General           `toml:"general,omitempty"`
	Env      map[string]string `toml:"env,omitempty"`
	Target   []Target          `toml:"target,omitempty"`
	Protocol []Protocol        `toml:"protocol,omitempty"`
	Channel  []Channel         `toml:"channel,omitempty"`
}

// Config is the merged view across every scope, highest precedence first.
type Config struct {
	General  General
	Env      map[string]string
	Target   map[string]Target
	Protocol map[string]Protocol
	Channel  map[string]Channel

	// generalSet records which [general] fields a file has already set,
	// so Load can merge them first-writer-wins deterministically.
	generalSet map[string]bool
}

// Load merges local, parent-chain, include-listed, and global config files,
// in that precedence order (first writer for a given field wins).
func Load(localDir, globalPath string) (*Config, error) {
	cfg := &Config{
		Env:        map[string]string{},
		Target:     map[string]Target{},
		Protocol:   map[string]Protocol{},
		Channel:    map[string]Channel{},
		generalSet: map[string]bool{},
	}

	var paths []string

	paths = append(paths, ancestorConfigPaths(localDir)...)

	seen := map[string]bool{}
	for _, p := range paths {
		if err := cfg.mergeFile(p, seen); err != nil {
			return nil, err
		}
	}

	if globalPath != "" {
		if err := cfg.mergeFile(globalPath, seen); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ancestorConfigPaths returns config.toml candidates from dir up through
// every parent directory, closest first.
func ancestorConfigPaths(dir string) []string {
	var out []string

	cur, err := filepath.Abs(dir)
	if err != nil {
		cur = dir
	}

	for {
		out = append(out, filepath.Join(cur, "config.toml"))

		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}

		cur = parent
	}

	return out
}

func (c *Config) mergeFile(path string, seen map[string]bool) error {
	if seen[path] {
		return nil
	}

	seen[path] = true

	if _, err := os.Stat(path); err != nil {
		return nil // absent scopes are skipped, not errors
	}

	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	c.mergeGeneral(f.General)

	for k, v := range f.Env {
		key := strings.ToUpper(k)
		if _, ok := c.Env[key]; !ok {
			c.Env[key] = v
		}
	}

	for _, t := range f.Target {
		if _, ok := c.Target[t.Name]; !ok {
			c.Target[t.Name] = t
		}
	}

	for _, p := range f.Protocol {
		if _, ok := c.Protocol[p.Name]; !ok {
			c.Protocol[p.Name] = p
		}
	}

	for _, ch := range f.Channel {
		if _, ok := c.Channel[ch.Name]; !ok {
			c.Channel[ch.Name] = ch
		}
	}

	dir := filepath.Dir(path)

	for _, inc := range f.Include {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(dir, incPath)
		}

		if err := c.mergeFile(incPath, seen); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) mergeGeneral(g General) {
	setOnce := func(field string, dst *string, val string) {
		if val == "" || c.generalSet[field] {
			return
		}

		*dst = val
		c.generalSet[field] = true
	}

	setOnce("cache-path", &c.General.CacheRoot, g.CacheRoot)
	setOnce("archive-path", &c.General.ArchiveRoot, g.ArchiveRoot)
	setOnce("channel-path", &c.General.ChannelRoot, g.ChannelRoot)
}

// EnvExportName returns the environment variable name a key of the
// configuration's [env] section is exported under: the ORBIT_ENV_ prefix,
// uppercased key, '-' mapped to '_'.
func (c *Config) EnvExportName(key string) string {
	norm := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	return "ORBIT_ENV_" + norm
}
