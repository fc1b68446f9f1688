// Package config loads the optional webstart configuration file.
//
// The file names the collaborator programs (interpreter, manage script,
// application server, WSGI module), an optional working directory and extra
// environment variables. Three formats are accepted and selected by file
// extension:
//
//   - .yaml / .yml parsed with gopkg.in/yaml.v3
//   - .json / .jsonc stripped of comments with github.com/tidwall/jsonc,
//     then parsed with encoding/json
//   - .toml parsed with github.com/BurntSushi/toml
//
// The server bind address, worker count and timeout are deliberately absent:
// they are constants of the startup command (see model.ServerArgs).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/webstart/internal/model"
)

// Defaults for a Django project started from its repository root.
const (
	DefaultPython = "python"
	DefaultManage = "manage.py"
	DefaultServer = "gunicorn"
	DefaultApp    = "core.wsgi"
)

// SearchNames lists the file names Find probes, in priority order.
var SearchNames = []string{
	"webstart.yaml",
	"webstart.yml",
	"webstart.jsonc",
	"webstart.json",
	"webstart.toml",
}

// Config holds the collaborator settings of the startup sequence.
type Config struct {
	// Python is the interpreter that runs the manage script.
	Python string `json:"python" yaml:"python" toml:"python"`

	// Manage is the path to the project's manage.py.
	Manage string `json:"manage" yaml:"manage" toml:"manage"`

	// Server is the WSGI application server executable.
	Server string `json:"server" yaml:"server" toml:"server"`

	// App is the WSGI module handed to the server (e.g. "core.wsgi").
	App string `json:"app" yaml:"app" toml:"app"`

	// WorkDir is the working directory for every step. Empty keeps the
	// current directory. Relative paths are resolved against the config
	// file's directory.
	WorkDir string `json:"workdir,omitempty" yaml:"workdir,omitempty" toml:"workdir,omitempty"`

	// Env holds extra environment variables for every step.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Python: DefaultPython,
		Manage: DefaultManage,
		Server: DefaultServer,
		App:    DefaultApp,
	}
}

// Load reads the configuration file at path and overlays it on Default().
// Fields left blank in the file keep their default value.
//
// Returns a CLIError with ExitConfigError if the file is missing, has an
// unsupported extension, or cannot be parsed.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, model.WrapCLIError(
				model.ExitConfigError,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return Config{}, model.WrapCLIError(model.ExitConfigError, "failed to read config file", err)
	}

	var raw Config
	if err := decode(path, data, &raw); err != nil {
		return Config{}, err
	}

	cfg := Default().merge(raw)
	if cfg.WorkDir != "" && !filepath.IsAbs(cfg.WorkDir) {
		cfg.WorkDir = filepath.Join(filepath.Dir(path), cfg.WorkDir)
	}
	return cfg, nil
}

// decode parses data into raw according to the extension of path.
func decode(path string, data []byte, raw *Config) error {
	ext := strings.ToLower(filepath.Ext(path))

	var err error
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, raw)
	case ".json", ".jsonc":
		// jsonc.ToJSON strips // and /* */ comments and trailing commas so
		// hand-edited files parse with encoding/json.
		err = json.Unmarshal(jsonc.ToJSON(data), raw)
	case ".toml":
		err = toml.Unmarshal(data, raw)
	default:
		return model.NewCLIError(
			model.ExitConfigError,
			fmt.Sprintf("unsupported config format %q (valid: .yaml, .yml, .json, .jsonc, .toml)", ext),
		)
	}
	if err != nil {
		return model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("failed to parse config file %s", path),
			err,
		)
	}
	return nil
}

// merge returns c with every non-blank field of o applied on top.
func (c Config) merge(o Config) Config {
	if v := strings.TrimSpace(o.Python); v != "" {
		c.Python = v
	}
	if v := strings.TrimSpace(o.Manage); v != "" {
		c.Manage = v
	}
	if v := strings.TrimSpace(o.Server); v != "" {
		c.Server = v
	}
	if v := strings.TrimSpace(o.App); v != "" {
		c.App = v
	}
	if v := strings.TrimSpace(o.WorkDir); v != "" {
		c.WorkDir = v
	}
	if len(o.Env) > 0 {
		env := make(map[string]string, len(c.Env)+len(o.Env))
		for k, v := range c.Env {
			env[k] = v
		}
		for k, v := range o.Env {
			env[k] = v
		}
		c.Env = env
	}
	return c
}

// Validate checks that every collaborator is named and the environment
// variable names are usable.
func (c Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"python", c.Python},
		{"manage", c.Manage},
		{"server", c.Server},
		{"app", c.App},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return model.NewCLIError(model.ExitConfigError, fmt.Sprintf("config: %s must not be empty", r.field))
		}
	}
	for k := range c.Env {
		if k == "" || strings.ContainsAny(k, "= \t") {
			return model.NewCLIError(model.ExitConfigError, fmt.Sprintf("config: invalid environment variable name %q", k))
		}
	}
	return nil
}

// Find returns the first config file from SearchNames present in dir.
// It returns an empty path and no error when none exists.
func Find(dir string) (string, error) {
	for _, name := range SearchNames {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				continue
			}
			return candidate, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
	}
	return "", nil
}

// Resolve loads the explicit path if given, otherwise the first file Find
// locates in dir, otherwise the defaults. The returned path is empty when
// defaults are used.
func Resolve(explicit, dir string) (Config, string, error) {
	path := explicit
	if path == "" {
		found, err := Find(dir)
		if err != nil {
			return Config{}, "", model.WrapCLIError(model.ExitConfigError, "failed to locate config file", err)
		}
		path = found
	}
	if path == "" {
		return Default(), "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return Config{}, path, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, path, err
	}
	return cfg, path, nil
}
