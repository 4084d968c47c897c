// Package environment resolves the runtime inputs the store consumes.
package environment

import (
	"fmt"
	"os"
	"path/filepath"
)

// Env is the environment capability. The engine reads the repository
// location and the assets root through it; the logger reads its level and
// file. Nothing in the store touches process env vars directly.
type Env interface {
	// EventLogRepository is the remote repository path or URL.
	EventLogRepository() string
	// EventLogAssetsDirectory is the root of the asset layout.
	EventLogAssetsDirectory() string
	// WorkingDirectory is where the working copy is cloned.
	WorkingDirectory() string
	LogLevel() string
	LogFile() string
}

// Static is a fixed Env, used by tests and by callers that resolve
// configuration themselves.
type Static struct {
	Repository string
	AssetsDir  string
	WorkDir    string
	Level      string
	File       string
}

func (s Static) EventLogRepository() string      { return s.Repository }
func (s Static) EventLogAssetsDirectory() string { return s.AssetsDir }
func (s Static) WorkingDirectory() string        { return s.WorkDir }
func (s Static) LogLevel() string                { return s.Level }
func (s Static) LogFile() string                 { return s.File }

// Resolve layers explicit overrides (typically CLI flags) over the process
// environment. Empty overrides fall through to env vars and defaults.
func Resolve(repository, workDir, assetsDir string) (Env, error) {
	if repository == "" {
		repository = os.Getenv("CHRONICLE_REPOSITORY")
	}
	if repository == "" {
		return nil, fmt.Errorf("no repository configured: set --repo or CHRONICLE_REPOSITORY")
	}

	if workDir == "" {
		workDir = os.Getenv("CHRONICLE_WORKDIR")
	}
	if workDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		workDir = filepath.Join(home, ".chronicle", "worktree")
	}

	if assetsDir == "" {
		assetsDir = os.Getenv("CHRONICLE_ASSETS_DIR")
	}
	if assetsDir == "" {
		assetsDir = filepath.Join(workDir, "assets")
	}

	level := os.Getenv("CHRONICLE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return Static{
		Repository: repository,
		AssetsDir:  assetsDir,
		WorkDir:    workDir,
		Level:      level,
		File:       os.Getenv("CHRONICLE_LOG_FILE"),
	}, nil
}

// FromOS resolves the environment from process env vars:
//
//	CHRONICLE_REPOSITORY  remote repository (required)
//	CHRONICLE_ASSETS_DIR  assets root      (default <workdir>/assets)
//	CHRONICLE_WORKDIR     working copy     (default ~/.chronicle/worktree)
//	CHRONICLE_LOG_LEVEL   zap level        (default info)
//	CHRONICLE_LOG_FILE    log destination  (default stderr)
func FromOS() (Env, error) {
	return Resolve("", "", "")
}
