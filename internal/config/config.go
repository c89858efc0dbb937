// Package config defines the read-only configuration the core consumes
// (spec §3, §6). Loading/bootstrap beyond this on-disk layout is an
// external concern (spec §1 non-goal); this package only supplies the
// struct and a loader thin enough to exercise the core end to end.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hansolo-dev/hansolo/internal/fileutil"
	"gopkg.in/yaml.v3"
)

// ForgeKind identifies which hosted forge the Forge Adapter talks to.
type ForgeKind string

const (
	ForgeGitHub ForgeKind = "github"
	ForgeGitLab ForgeKind = "gitlab"
)

// Config is loaded once per tool invocation (spec §3 "Configuration").
type Config struct {
	MainBranch     string        `yaml:"mainBranch"`
	RemoteName     string        `yaml:"remoteName"`
	ForgeKind      ForgeKind     `yaml:"forgeKind"`
	RequiredChecks []string      `yaml:"requiredChecks"`
	AutoMerge      bool          `yaml:"autoMerge"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	OverallTimeout time.Duration `yaml:"overallTimeout"`
	SessionTTL     time.Duration `yaml:"sessionTTL"`

	// SessionLockTimeout bounds session-lock acquisition (spec §4.3).
	SessionLockTimeout time.Duration `yaml:"sessionLockTimeout"`

	// WorkspaceDir is the absolute workspace root containing .hansolo/
	// (not part of the on-disk schema; set by the loader from the CLI cwd).
	WorkspaceDir string `yaml:"-"`
}

// Default returns the configuration defaults named throughout spec.md
// (7-day TTL, 30s lock timeout, 20min overall check timeout).
func Default() *Config {
	return &Config{
		MainBranch:         "main",
		RemoteName:         "origin",
		ForgeKind:          ForgeGitHub,
		RequiredChecks:     nil,
		AutoMerge:          false,
		PollInterval:       15 * time.Second,
		OverallTimeout:     20 * time.Minute,
		SessionTTL:         7 * 24 * time.Hour,
		SessionLockTimeout: 30 * time.Second,
	}
}

// HansoloDir returns the on-disk layout root for a given workspace
// (spec §6: <workspace>/.hansolo/).
func HansoloDir(workspaceDir string) string {
	return filepath.Join(workspaceDir, ".hansolo")
}

// SessionsDir returns <workspace>/.hansolo/sessions.
func SessionsDir(workspaceDir string) string {
	return filepath.Join(HansoloDir(workspaceDir), "sessions")
}

// AuditLogPath returns <workspace>/.hansolo/audit.log.
func AuditLogPath(workspaceDir string) string {
	return filepath.Join(HansoloDir(workspaceDir), "audit.log")
}

// Load reads .hansolo/config.yaml under workspaceDir, falling back to
// Default() for any field the file omits. A missing file is not an error;
// Load fails when workspaceDir is empty or not absolute, or when the file
// exists but cannot be read or parsed.
func Load(workspaceDir string) (*Config, error) {
	cleanDir, err := fileutil.ValidateAbsolutePath(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("workspace directory: %w", err)
	}
	workspaceDir = cleanDir

	cfg := Default()
	cfg.WorkspaceDir = workspaceDir

	path := filepath.Join(HansoloDir(workspaceDir), "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	loaded := *cfg
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	loaded.WorkspaceDir = workspaceDir
	return &loaded, nil
}

// Initialized reports whether the workspace has the .hansolo/ layout the
// `hansolo-initialized` check requires (spec §4.4).
func Initialized(workspaceDir string) bool {
	return fileutil.DirExists(SessionsDir(workspaceDir))
}
