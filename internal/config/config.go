// Package config provides configuration management for gatecheck.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (GATECHECK_*)
// 3. Project config (.gatecheck/config.yaml under the repo root)
// 4. Home config (~/.gatecheck/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all gatecheck configuration.
type Config struct {
	// Output controls the default output format (table, json).
	Output string `yaml:"output" json:"output"`

	// Verbose enables verbose diagnostics on stderr.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Paths settings for artifact locations (configurable, not hardcoded).
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Secrecy settings for the fingerprint audit.
	Secrecy SecrecyConfig `yaml:"secrecy" json:"secrecy"`
}

// PathsConfig holds configurable repo-relative artifact locations.
type PathsConfig struct {
	// LatticeDir holds context lattice documents.
	// Default: contracts/context_lattice
	LatticeDir string `yaml:"lattice_dir" json:"lattice_dir"`

	// LatticeSchema is the JSON schema the lattice must satisfy.
	// Default: schemas/ContextLattice.schema.json
	LatticeSchema string `yaml:"lattice_schema" json:"lattice_schema"`

	// ContractsDir holds safety contracts with tolerance declarations.
	// Default: contracts/safety_contracts
	ContractsDir string `yaml:"contracts_dir" json:"contracts_dir"`

	// FitsDir holds fitted risk curves.
	// Default: control_plane/governor/risk_fits
	FitsDir string `yaml:"fits_dir" json:"fits_dir"`

	// PlansDir holds oversight plans.
	// Default: control_plane/governor/oversight_plans
	PlansDir string `yaml:"plans_dir" json:"plans_dir"`

	// LineageDir holds lineage ledger entries.
	// Default: lineage
	LineageDir string `yaml:"lineage_dir" json:"lineage_dir"`

	// AARDir holds after-action reports.
	// Default: aars
	AARDir string `yaml:"aar_dir" json:"aar_dir"`

	// KeysDir holds the approval key registry.
	// Default: control_plane/keys
	KeysDir string `yaml:"keys_dir" json:"keys_dir"`

	// SuiteRegistry is the evaluation suite registry file.
	// Default: control_plane/evals/suites/registry.json
	SuiteRegistry string `yaml:"suite_registry" json:"suite_registry"`

	// SecretRegistry is the secret suite hash registry file.
	// Default: control_plane/evals/suites/hash_registries/secret_suite_hashes_v1.json
	SecretRegistry string `yaml:"secret_registry" json:"secret_registry"`
}

// SecrecyConfig holds fingerprint-audit settings.
type SecrecyConfig struct {
	// ProtectedPaths are the repo-relative directories scanned for leaks.
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"`

	// Concurrency bounds the scan fan-out (0 = NumCPU).
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// KeyEnv is the environment variable consulted for the HMAC key when
	// a scheme declares no key_id.
	KeyEnv string `yaml:"key_env" json:"key_env"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput = "table"
	defaultKeyEnv = "GATECHECK_SECRECY_HMAC_KEY"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output: defaultOutput,
		Paths: PathsConfig{
			LatticeDir:     "contracts/context_lattice",
			LatticeSchema:  "schemas/ContextLattice.schema.json",
			ContractsDir:   "contracts/safety_contracts",
			FitsDir:        "control_plane/governor/risk_fits",
			PlansDir:       "control_plane/governor/oversight_plans",
			LineageDir:     "lineage",
			AARDir:         "aars",
			KeysDir:        "control_plane/keys",
			SuiteRegistry:  "control_plane/evals/suites/registry.json",
			SecretRegistry: "control_plane/evals/suites/hash_registries/secret_suite_hashes_v1.json",
		},
		Secrecy: SecrecyConfig{
			Concurrency: 0,
			KeyEnv:      defaultKeyEnv,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(repoRoot string, flagOverrides *Config) (*Config, error) {
	cfg := Default()

	homeConfig, _ := loadFromPath(homeConfigPath())
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	projectConfig, _ := loadFromPath(projectConfigPath(repoRoot))
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gatecheck", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath(repoRoot string) string {
	if override := strings.TrimSpace(os.Getenv("GATECHECK_CONFIG")); override != "" {
		return override
	}
	if repoRoot == "" {
		repoRoot = "."
	}
	return filepath.Join(repoRoot, ".gatecheck", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("GATECHECK_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("GATECHECK_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("GATECHECK_LATTICE_DIR"); v != "" {
		cfg.Paths.LatticeDir = v
	}
	if v := os.Getenv("GATECHECK_LATTICE_SCHEMA"); v != "" {
		cfg.Paths.LatticeSchema = v
	}
	if v := os.Getenv("GATECHECK_SECRET_REGISTRY"); v != "" {
		cfg.Paths.SecretRegistry = v
	}
	if v := os.Getenv("GATECHECK_SUITE_REGISTRY"); v != "" {
		cfg.Paths.SuiteRegistry = v
	}
	if v := os.Getenv("GATECHECK_SCAN_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Secrecy.Concurrency = n
		}
	}
	if v := os.Getenv("GATECHECK_SECRECY_KEY_ENV"); v != "" {
		cfg.Secrecy.KeyEnv = v
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	if src.Verbose {
		dst.Verbose = true
	}

	mergeStr(&dst.Paths.LatticeDir, src.Paths.LatticeDir)
	mergeStr(&dst.Paths.LatticeSchema, src.Paths.LatticeSchema)
	mergeStr(&dst.Paths.ContractsDir, src.Paths.ContractsDir)
	mergeStr(&dst.Paths.FitsDir, src.Paths.FitsDir)
	mergeStr(&dst.Paths.PlansDir, src.Paths.PlansDir)
	mergeStr(&dst.Paths.LineageDir, src.Paths.LineageDir)
	mergeStr(&dst.Paths.AARDir, src.Paths.AARDir)
	mergeStr(&dst.Paths.KeysDir, src.Paths.KeysDir)
	mergeStr(&dst.Paths.SuiteRegistry, src.Paths.SuiteRegistry)
	mergeStr(&dst.Paths.SecretRegistry, src.Paths.SecretRegistry)

	if len(src.Secrecy.ProtectedPaths) > 0 {
		dst.Secrecy.ProtectedPaths = src.Secrecy.ProtectedPaths
	}
	if src.Secrecy.Concurrency != 0 {
		dst.Secrecy.Concurrency = src.Secrecy.Concurrency
	}
	mergeStr(&dst.Secrecy.KeyEnv, src.Secrecy.KeyEnv)

	return dst
}
