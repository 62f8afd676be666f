// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg binds and validates the configuration accepted by the core
// at construction time (spec.md §6): case sensitivity, resource limits,
// memory/spill policy, adapter cache hints, the POSIX permission policy,
// and the xattr/ADS/event feature gates.
package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of options a Core may be constructed with.
type Config struct {
	CaseSensitivity CaseSensitivity `mapstructure:"case-sensitivity"`

	Limits   LimitsConfig   `mapstructure:"limits"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`

	EnableXattrs bool `mapstructure:"enable-xattrs"`
	EnableAds    bool `mapstructure:"enable-ads"`
	TrackEvents  bool `mapstructure:"track-events"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LimitsConfig bounds resource consumption (spec.md §5).
type LimitsConfig struct {
	MaxOpenHandles int `mapstructure:"max-open-handles"`
	MaxBranches    int `mapstructure:"max-branches"`
	MaxSnapshots   int `mapstructure:"max-snapshots"`
}

// MemoryConfig bounds the content store and names an optional spill
// directory. Spilling to disk is out of scope for this core (spec.md §2)
// but the field is retained so adapters can reject it with Unsupported
// rather than silently ignoring it.
type MemoryConfig struct {
	MaxBytesInMemory int64  `mapstructure:"max-bytes-in-memory"`
	SpillDirectory   string `mapstructure:"spill-directory"`
}

// CacheConfig carries adapter cache hints through unchanged; the core
// itself never caches (spec.md §6).
type CacheConfig struct {
	AttrTTL           time.Duration `mapstructure:"attr-ttl"`
	EntryTTL          time.Duration `mapstructure:"entry-ttl"`
	NegativeTTL       time.Duration `mapstructure:"negative-ttl"`
	EnableReaddirPlus bool          `mapstructure:"enable-readdir-plus"`
	AutoCache         bool          `mapstructure:"auto-cache"`
	WritebackCache    bool          `mapstructure:"writeback-cache"`
}

// SecurityConfig is the permission policy (spec.md §4.1).
type SecurityConfig struct {
	EnforcePosixPermissions bool   `mapstructure:"enforce-posix-permissions"`
	DefaultUid              uint32 `mapstructure:"default-uid"`
	DefaultGid              uint32 `mapstructure:"default-gid"`
	EnableWindowsACLCompat  bool   `mapstructure:"enable-windows-acl-compat"`
	RootBypassPermissions   bool   `mapstructure:"root-bypass-permissions"`
}

// LoggingConfig configures the logger package.
type LoggingConfig struct {
	Severity LogSeverity `mapstructure:"severity"`
	Format   string      `mapstructure:"format"` // "text" or "json"
}

// BindFlags registers the command-line flags used by cmd/agentfsctl and
// binds them into viper under the same keys as the mapstructure tags
// above, mirroring the teacher's generated cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("case-sensitivity", "", string(Sensitive),
		"Name comparison policy: sensitive, insensitive-preserving, insensitive-folding.")
	if err = viper.BindPFlag("case-sensitivity", flagSet.Lookup("case-sensitivity")); err != nil {
		return err
	}

	flagSet.IntP("max-open-handles", "", 1<<16, "Limit on concurrently open handles.")
	if err = viper.BindPFlag("limits.max-open-handles", flagSet.Lookup("max-open-handles")); err != nil {
		return err
	}

	flagSet.IntP("max-branches", "", 0, "Limit on branches (0 = unlimited).")
	if err = viper.BindPFlag("limits.max-branches", flagSet.Lookup("max-branches")); err != nil {
		return err
	}

	flagSet.IntP("max-snapshots", "", 0, "Limit on snapshots (0 = unlimited).")
	if err = viper.BindPFlag("limits.max-snapshots", flagSet.Lookup("max-snapshots")); err != nil {
		return err
	}

	flagSet.Int64P("max-bytes-in-memory", "", 0, "Limit on content store bytes (0 = unlimited).")
	if err = viper.BindPFlag("memory.max-bytes-in-memory", flagSet.Lookup("max-bytes-in-memory")); err != nil {
		return err
	}

	flagSet.BoolP("enable-xattrs", "", true, "Enable the xattr_* operations.")
	if err = viper.BindPFlag("enable-xattrs", flagSet.Lookup("enable-xattrs")); err != nil {
		return err
	}

	flagSet.BoolP("enable-ads", "", true, "Enable Alternate Data Streams.")
	if err = viper.BindPFlag("enable-ads", flagSet.Lookup("enable-ads")); err != nil {
		return err
	}

	flagSet.BoolP("track-events", "", true, "Emit events to subscribers.")
	if err = viper.BindPFlag("track-events", flagSet.Lookup("track-events")); err != nil {
		return err
	}

	flagSet.BoolP("root-bypass-permissions", "", false, "Let uid 0 bypass POSIX permission checks.")
	if err = viper.BindPFlag("security.root-bypass-permissions", flagSet.Lookup("root-bypass-permissions")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(SeverityInfo), "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	return nil
}
