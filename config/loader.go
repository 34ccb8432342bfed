package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "crucible.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/crucible"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// ModelConfigFile and ModelLocalConfigFile live under the project's config/ dir
	ModelConfigFile      = "model.yaml"
	ModelLocalConfigFile = "model.local.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger  *slog.Logger
	workDir string
	homeDir string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithWorkDir sets the directory the project config search starts from.
func WithWorkDir(dir string) LoaderOption {
	return func(l *Loader) { l.workDir = dir }
}

// WithHomeDir overrides the home directory used for the user config.
func WithHomeDir(dir string) LoaderOption {
	return func(l *Loader) { l.homeDir = dir }
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/crucible/config.yaml)
// 3. Project config (crucible.yaml in current or parent directories)
// 4. config/model.yaml, then config/model.local.yaml (model section only)
// 5. The explicit file, when given
func (l *Loader) Load(explicit string) (*Config, error) {
	config := DefaultConfig()

	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	root := l.startDir()
	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		projectConfig, err := LoadFromFile(projectConfigPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		config.Merge(projectConfig)
		root = filepath.Dir(projectConfigPath)
	} else {
		l.logger.Debug("No project config found")
	}
	config.Root = root

	for _, name := range []string{ModelConfigFile, ModelLocalConfigFile} {
		path := filepath.Join(root, "config", name)
		mc, err := LoadModelFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		l.logger.Debug("Loaded model config", slog.String("path", path))
		config.Model.Merge(mc)
	}

	if explicit != "" {
		explicitConfig, err := LoadFromFile(explicit)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded explicit config", slog.String("path", explicit))
		config.Merge(explicitConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return fmt.Errorf("cannot determine home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.homeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

func (l *Loader) startDir() string {
	if l.workDir != "" {
		return l.workDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// findProjectConfig searches for crucible.yaml in the start and parent directories
func (l *Loader) findProjectConfig() string {
	dir, err := filepath.Abs(l.startDir())
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
