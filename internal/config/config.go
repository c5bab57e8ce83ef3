// Package config binds opkg's CLI options and profile file into a single
// layered configuration, the way roivaz-aro-hcp-intelhub's internal/config
// package wires spf13/viper: flags override env vars, which override a
// profile file, which overrides defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	KeyGlobal      = "global"
	KeyDryRun      = "dry-run"
	KeyForce       = "force"
	KeyConflicts   = "conflicts"
	KeyPlatforms   = "platforms"
	KeyRemote      = "remote"
	KeyProfile     = "profile"
	KeyAPIKey      = "api-key"
	KeyPlugins     = "plugins"
	KeyAgents      = "agents"
	KeySkills      = "skills"
	KeyConcurrency = "concurrency"
	KeyRegistryURL = "registry-url"
	KeyCacheRoot   = "cache-root"
)

// ConflictMode is the --conflicts arbitration policy requested by the user.
type ConflictMode string

const (
	ConflictKeepBoth  ConflictMode = "keep-both"
	ConflictOverwrite ConflictMode = "overwrite"
	ConflictSkip      ConflictMode = "skip"
	ConflictAsk       ConflictMode = "ask"
)

// Init binds root's persistent flags into viper and loads defaults plus,
// when present, the active profile file from ~/.opkg/<profile>.yaml.
func Init(root *cobra.Command) error {
	v := viper.GetViper()
	v.SetEnvPrefix("OPKG")
	v.AutomaticEnv()
	setDefaults(v)
	if root != nil {
		if err := v.BindPFlags(root.PersistentFlags()); err != nil {
			return err
		}
	}
	return loadProfile(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyConflicts, string(ConflictAsk))
	v.SetDefault(KeyConcurrency, 4)
	v.SetDefault(KeyRemote, false)
	v.SetDefault(KeyCacheRoot, defaultCacheRoot())
}

func defaultCacheRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opkg-cache"
	}
	return filepath.Join(home, ".cache", "opkg")
}

// loadProfile reads ~/.opkg/<profile>.yaml (if any) as a lower-priority
// layer beneath flags and env vars.
func loadProfile(v *viper.Viper) error {
	profile := v.GetString(KeyProfile)
	if profile == "" {
		profile = "default"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".opkg", fmt.Sprintf("%s.yaml", profile))
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	profileViper := viper.New()
	profileViper.SetConfigFile(path)
	if err := profileViper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading profile %q: %w", profile, err)
	}
	return v.MergeConfigMap(profileViper.AllSettings())
}

// Global, DryRun, Force, etc. mirror the --options named in spec §6.
func Global() bool            { return viper.GetBool(KeyGlobal) }
func DryRun() bool            { return viper.GetBool(KeyDryRun) }
func Force() bool             { return viper.GetBool(KeyForce) }
func Conflicts() ConflictMode { return ConflictMode(viper.GetString(KeyConflicts)) }
func Platforms() []string     { return viper.GetStringSlice(KeyPlatforms) }
func RemotePrimary() bool     { return viper.GetBool(KeyRemote) }
func Profile() string         { return viper.GetString(KeyProfile) }
func APIKey() string          { return viper.GetString(KeyAPIKey) }
func Plugins() []string       { return viper.GetStringSlice(KeyPlugins) }
func Agents() []string        { return viper.GetStringSlice(KeyAgents) }
func Skills() []string        { return viper.GetStringSlice(KeySkills) }
func Concurrency() int        { return viper.GetInt(KeyConcurrency) }
func RegistryURL() string     { return viper.GetString(KeyRegistryURL) }
func CacheRoot() string       { return viper.GetString(KeyCacheRoot) }

// ValidateResourceFilters implements the heuristic-precedence validation
// error from spec §9: mixing --plugins with --agents/--skills is always
// rejected, whatever names are given.
func ValidateResourceFilters() error {
	if len(Plugins()) > 0 && (len(Agents()) > 0 || len(Skills()) > 0) {
		return fmt.Errorf("ambiguous resource filter: --plugins cannot be combined with --agents/--skills")
	}
	return nil
}
