// Package config provides configuration loading for the git-try-merge application.
// Settings come from the try-merge section of git config, with environment variables
// taking precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/MyCarrier-DevOps/git-try-merge/internal/domain"
)

// Environment variable names.
const (
	// EnvSquash overrides try-merge.squash.
	EnvSquash = "TRY_MERGE_SQUASH"

	// EnvIgnoreConflict replaces the try-merge.ignore-conflict patterns. Patterns are
	// separated by commas or whitespace.
	EnvIgnoreConflict = "TRY_MERGE_IGNORE_CONFLICT"

	// EnvRemote is the remote whose default branch is merged when no revision is given.
	EnvRemote = "TRY_MERGE_REMOTE"

	// EnvScanLimit bounds how many commits the squash inspects.
	EnvScanLimit = "TRY_MERGE_SCAN_LIMIT"

	// EnvToken is used as the password when fetching over https.
	EnvToken = "TRY_MERGE_TOKEN"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"
)

// Git configuration keys.
const (
	GitSection           = "try-merge"
	GitKeySquash         = "squash"
	GitKeyIgnoreConflict = "ignore-conflict"
)

// Default values.
const (
	DefaultLogLevel   = "info"
	DefaultLogAppName = "git-try-merge"
)

// viper keys.
const (
	keySquash         = "squash"
	keyIgnoreConflict = "ignore_conflict"
	keyRemote         = "remote"
	keyScanLimit      = "scan_limit"
	keyToken          = "token"
	keyLogLevel       = "log_level"
	keyLogAppName     = "log_app_name"
)

var envBindings = map[string]string{
	keySquash:         EnvSquash,
	keyIgnoreConflict: EnvIgnoreConflict,
	keyRemote:         EnvRemote,
	keyScanLimit:      EnvScanLimit,
	keyToken:          EnvToken,
	keyLogLevel:       EnvLogLevel,
	keyLogAppName:     EnvLogAppName,
}

// Configuration errors.
var (
	// ErrGitConfigUnavailable indicates git config could not be read.
	ErrGitConfigUnavailable = errors.New("failed to read git configuration")

	// ErrInvalidSetting indicates a setting has a value of the wrong type.
	ErrInvalidSetting = errors.New("invalid configuration value")
)

// Source reads multi-valued git configuration keys. Values are ordered from the
// least to the most specific configuration file.
type Source interface {
	ConfigValues(ctx context.Context, section, key string) ([]string, error)
}

// Config holds all application configuration.
type Config struct {
	// Squash folds generated merges when there is nothing left to merge.
	Squash bool

	// IgnoreConflicts are the glob patterns of paths whose conflicts are resolved
	// by taking the upstream version.
	IgnoreConflicts []string

	// Remote provides the default target revision.
	Remote string

	// SquashScanLimit is the maximum number of commits read by the squash.
	SquashScanLimit int

	// Token authenticates https fetches.
	Token string

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string
}

// Load reads try-merge.squash and try-merge.ignore-conflict from source and applies
// environment overrides.
//
// Returns ErrGitConfigUnavailable if source fails and ErrInvalidSetting if an
// environment override does not parse.
func Load(ctx context.Context, source Source) (*Config, error) {
	squashValues, err := source.ConfigValues(ctx, GitSection, GitKeySquash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGitConfigUnavailable, err)
	}
	patterns, err := source.ConfigValues(ctx, GitSection, GitKeyIgnoreConflict)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGitConfigUnavailable, err)
	}

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetDefault(keySquash, "false")
	if len(squashValues) > 0 {
		// The most specific file wins for single-valued keys. A value that is not a
		// boolean counts as unset.
		if last := squashValues[len(squashValues)-1]; isBool(last) {
			v.SetDefault(keySquash, last)
		}
	}
	v.SetDefault(keyRemote, domain.DefaultRemote)
	v.SetDefault(keyScanLimit, domain.DefaultSquashScanLimit)
	v.SetDefault(keyLogLevel, DefaultLogLevel)
	v.SetDefault(keyLogAppName, DefaultLogAppName)

	squash, err := parseBool(v.GetString(keySquash))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSetting, EnvSquash, err)
	}

	scanLimit, err := strconv.Atoi(strings.TrimSpace(v.GetString(keyScanLimit)))
	if err != nil || scanLimit <= 0 {
		return nil, fmt.Errorf("%w: %s must be a positive integer, got %q",
			ErrInvalidSetting, EnvScanLimit, v.GetString(keyScanLimit))
	}

	if raw := v.GetString(keyIgnoreConflict); strings.TrimSpace(raw) != "" {
		patterns = splitList(raw)
	}

	remote := strings.TrimSpace(v.GetString(keyRemote))
	if remote == "" {
		remote = domain.DefaultRemote
	}

	return &Config{
		Squash:          squash,
		IgnoreConflicts: lo.Uniq(lo.Compact(patterns)),
		Remote:          remote,
		SquashScanLimit: scanLimit,
		Token:           v.GetString(keyToken),
		LogLevel:        v.GetString(keyLogLevel),
		LogAppName:      v.GetString(keyLogAppName),
	}, nil
}

// parseBool accepts the boolean spellings git accepts. A key present without a
// value reads as an empty string and means true.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%q is not a boolean", value)
	}
}

func isBool(value string) bool {
	_, err := parseBool(value)
	return err == nil
}

func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
