// Package manifest handles knight.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/knight/vm"
)

// FileName is the name of the project configuration file.
const FileName = "knight.toml"

// Defaults applied after decoding.
const (
	DefaultShell      = "/bin/sh"
	DefaultAddr       = ":4567"
	DefaultSessionTTL = 30 * time.Minute
)

// NoShell as the [run] shell disables ` entirely.
const NoShell = "none"

// Manifest represents a knight.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Run     RunConfig    `toml:"run"`
	Server  ServerConfig `toml:"server"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the knight.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"` // program run when no source is given
}

// RunConfig configures the interpreter.
type RunConfig struct {
	Shell string `toml:"shell"`
	Seed  int64  `toml:"seed"`  // 0 means nondeterministic
	Image string `toml:"image"` // globals loaded before and saved after a run
}

// ServerConfig configures the evaluation server.
type ServerConfig struct {
	Addr       string `toml:"addr"`
	AllowShell bool   `toml:"allow-shell"`
	SessionTTL string `toml:"session-ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no knight.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Run.Shell == "" {
		m.Run.Shell = DefaultShell
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Server.SessionTTL == "" {
		m.Server.SessionTTL = DefaultSessionTTL.String()
	}
}

// Load parses a knight.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the named configuration file.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	m.applyDefaults()
	if _, err := time.ParseDuration(m.Server.SessionTTL); err != nil {
		return nil, fmt.Errorf("%s: server.session-ttl: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a knight.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve returns p relative to the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the absolute path of the entry program, or "".
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// ImagePath returns the absolute path of the globals image, or "".
func (m *Manifest) ImagePath() string {
	return m.resolve(m.Run.Image)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

// SessionTTL returns how long an idle server session lives.
func (m *Manifest) SessionTTL() time.Duration {
	d, err := time.ParseDuration(m.Server.SessionTTL)
	if err != nil || d <= 0 {
		return DefaultSessionTTL
	}
	return d
}

// ShellFunc returns the command runner configured by [run] shell.
func (m *Manifest) ShellFunc() vm.ShellFunc {
	switch m.Run.Shell {
	case NoShell:
		return vm.NoShell
	case "":
		return vm.SystemShell(DefaultShell)
	}
	return vm.SystemShell(m.Run.Shell)
}

// InterpreterOptions returns the interpreter options configured by [run].
func (m *Manifest) InterpreterOptions() []vm.Option {
	opts := []vm.Option{vm.WithShell(m.ShellFunc())}
	if m.Run.Seed != 0 {
		opts = append(opts, vm.WithSeed(uint64(m.Run.Seed)))
	}
	return opts
}
