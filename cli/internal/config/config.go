// Package config provides commitmate configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Global: $XDG_CONFIG_HOME/commitmate/config.toml (see os.UserConfigDir)
//   - Repo: .commitmate.json (relative to the repository root)
//
// Environment variables use the COMMITMATE_ prefix and the upper-cased key,
// e.g. COMMITMATE_PROVIDER, COMMITMATE_MAX_SUBJECT_LENGTH, COMMITMATE_OFFLINE.
// A .env file at the repository root is merged under the process environment
// (see Environ). api_key is never read from the environment directly; provider
// credentials are resolved by the generator selector.
//
// Loading never fails. A file that cannot be parsed is skipped and any field
// that fails validation is reset to its default; each problem is returned as
// part of a *multierror.Error warning.
package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/erruser"
	"commitmate/cli/internal/policy"
	"commitmate/cli/internal/prompt"
)

// Config holds all commitmate configuration. Keys are the toml tags; the
// same names are used in .commitmate.json, by `config set`, and (upper-cased)
// in COMMITMATE_* environment variables.
type Config struct {
	Style            string `toml:"style" json:"style" validate:"oneof=conventional plain"`
	Scope            string `toml:"scope" json:"scope" validate:"omitempty,max=32,scope"`
	MaxSubjectLength int    `toml:"max_subject_length" json:"max_subject_length" validate:"min=20,max=200"`
	MaxBullets       int    `toml:"max_bullets" json:"max_bullets" validate:"min=0,max=10"`
	BulletPrefix     string `toml:"bullet_prefix" json:"bullet_prefix" validate:"required,max=4"`

	// Provider is github, openai, local, or mock. Unknown names select mock.
	Provider string `toml:"provider" json:"provider" validate:"omitempty,max=32"`
	Model    string `toml:"model" json:"model"`
	// APIKey may be a literal key or a reference: env:NAME, $NAME, ${NAME}.
	APIKey      string  `toml:"api_key" json:"api_key"`
	Endpoint    string  `toml:"endpoint" json:"endpoint" validate:"omitempty,url"`
	Temperature float64 `toml:"temperature" json:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `toml:"max_tokens" json:"max_tokens" validate:"min=0,max=32768"`
	Offline     bool    `toml:"offline" json:"offline"`

	BaseBranch        string `toml:"base_branch" json:"base_branch" validate:"required"`
	Language          string `toml:"language" json:"language" validate:"required,max=32"`
	HistoryMaxRecords int    `toml:"history_max_records" json:"history_max_records" validate:"min=0,max=100000"`
	// IgnorePatterns replaces the default diff ignore list when set.
	IgnorePatterns []string `toml:"ignore_patterns" json:"ignore_patterns"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	Style    *string
	Scope    *string
	Provider *string
	Model    *string
	Offline  *bool
	Language *string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, repo config is RepoRoot/.commitmate.json.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, GlobalPath(Env) is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultStyle             = commitmsg.StyleConventional
	_defaultBulletPrefix      = "-"
	_defaultProvider          = "github"
	_defaultTemperature       = 0.2
	_defaultMaxTokens         = 300
	_defaultBaseBranch        = "main"
	_defaultLanguage          = "en"
	_defaultHistoryMaxRecords = 500

	envPrefix = "COMMITMATE_"
	// RepoFileName is the repository-level config file.
	RepoFileName = ".commitmate.json"
)

var scopeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._/-]*$`)

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Style:             _defaultStyle,
		MaxSubjectLength:  policy.DefaultMaxSubjectLength,
		MaxBullets:        policy.DefaultMaxBullets,
		BulletPrefix:      _defaultBulletPrefix,
		Provider:          _defaultProvider,
		Temperature:       _defaultTemperature,
		MaxTokens:         _defaultMaxTokens,
		BaseBranch:        _defaultBaseBranch,
		Language:          _defaultLanguage,
		HistoryMaxRecords: _defaultHistoryMaxRecords,
	}
}

// GlobalPath returns the global config file path, honoring XDG_CONFIG_HOME
// from env before falling back to os.UserConfigDir.
func GlobalPath(env []string) (string, error) {
	if dir, ok := lookup(env, "XDG_CONFIG_HOME"); ok && dir != "" {
		return filepath.Join(dir, "commitmate", "config.toml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", erruser.New("Could not determine config directory.", err)
	}
	return filepath.Join(dir, "commitmate", "config.toml"), nil
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// The returned config is always usable; the error, when non-nil, lists the
// problems that were skipped or reset to defaults.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()
	var problems *multierror.Error

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		p, err := GlobalPath(opts.Env)
		if err != nil {
			problems = multierror.Append(problems, err)
		}
		globalPath = p
	}
	if globalPath != "" {
		if err := mergeTOML(&cfg, globalPath); err != nil {
			problems = multierror.Append(problems, err)
		}
	}
	if opts.RepoRoot != "" {
		if err := mergeJSON(&cfg, filepath.Join(opts.RepoRoot, RepoFileName)); err != nil {
			problems = multierror.Append(problems, err)
		}
	}
	if err := applyEnv(&cfg, opts.Env); err != nil {
		problems = multierror.Append(problems, err)
	}
	applyOverrides(&cfg, opts.Overrides)

	if err := normalize(&cfg); err != nil {
		problems = multierror.Append(problems, err)
	}
	return &cfg, problems.ErrorOrNil()
}

// mergeTOML decodes path over cfg. Keys absent from the file keep their
// previous value. A missing file is not a problem.
func mergeTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read %s", path)
	}
	next := *cfg
	md, err := toml.Decode(string(data), &next)
	if err != nil {
		return errors.Wrapf(err, "ignoring %s", path)
	}
	*cfg = next
	var result *multierror.Error
	for _, key := range md.Undecoded() {
		result = multierror.Append(result, errors.Newf("%s: unknown key %q", path, key.String()))
	}
	return result.ErrorOrNil()
}

func mergeJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read %s", path)
	}
	next := *cfg
	if err := json.Unmarshal(data, &next); err != nil {
		return errors.Wrapf(err, "ignoring %s", path)
	}
	*cfg = next
	return nil
}

func applyEnv(cfg *Config, env []string) error {
	var result *multierror.Error
	for _, f := range fields() {
		if f.key == "api_key" {
			continue
		}
		v, ok := lookup(env, envPrefix+strings.ToUpper(f.key))
		if !ok || v == "" {
			continue
		}
		if err := f.set(cfg, v); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "%s%s", envPrefix, strings.ToUpper(f.key)))
		}
	}
	return result.ErrorOrNil()
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	if o.Style != nil && *o.Style != "" {
		cfg.Style = *o.Style
	}
	if o.Scope != nil {
		cfg.Scope = *o.Scope
	}
	if o.Provider != nil && *o.Provider != "" {
		cfg.Provider = *o.Provider
	}
	if o.Model != nil && *o.Model != "" {
		cfg.Model = *o.Model
	}
	if o.Offline != nil {
		cfg.Offline = *o.Offline
	}
	if o.Language != nil && *o.Language != "" {
		cfg.Language = *o.Language
	}
}

// normalize trims and lowercases free-form values, then resets every field
// that fails validation to its default.
func normalize(cfg *Config) error {
	cfg.Style = strings.ToLower(strings.TrimSpace(cfg.Style))
	cfg.Scope = strings.ToLower(strings.TrimSpace(cfg.Scope))
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.BaseBranch = strings.TrimSpace(cfg.BaseBranch)
	cfg.Language = strings.TrimSpace(cfg.Language)

	err := validate().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}
	defaults := reflect.ValueOf(DefaultConfig())
	target := reflect.ValueOf(cfg).Elem()
	var result *multierror.Error
	for _, fe := range verrs {
		name := fe.StructField()
		dst := target.FieldByName(name)
		if !dst.IsValid() {
			continue
		}
		dst.Set(defaults.FieldByName(name))
		result = multierror.Append(result, errors.Newf("%s: invalid value %v (%s), using default", keyFor(name), fe.Value(), fe.Tag()))
	}
	return result.ErrorOrNil()
}

func validate() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
		return scopeRe.MatchString(fl.Field().String())
	})
	return v
}

// Validate reports the first validation problem in cfg without modifying it.
func Validate(cfg Config) error {
	if err := validate().Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return erruser.New("Invalid value for "+keyFor(fe.StructField())+".", err)
		}
		return errors.Wrap(err, "validate config")
	}
	return nil
}

// Policy returns the validator configuration for cfg.
func (c Config) Policy() policy.Config {
	p := policy.Default()
	p.MaxSubjectLength = c.MaxSubjectLength
	p.MaxBullets = c.MaxBullets
	return p
}

// FormatOptions returns the formatter options for cfg.
func (c Config) FormatOptions() commitmsg.Options {
	return commitmsg.Options{
		Style:            c.Style,
		MaxSubjectLength: c.MaxSubjectLength,
		MaxBullets:       c.MaxBullets,
		BulletPrefix:     c.BulletPrefix,
	}
}

// PromptOptions returns the remote prompt options for cfg.
func (c Config) PromptOptions() prompt.Options {
	return prompt.Options{
		Language:         c.Language,
		Style:            c.Style,
		MaxSubjectLength: c.MaxSubjectLength,
		MaxBullets:       c.MaxBullets,
	}
}

func lookup(env []string, key string) (string, bool) {
	var (
		val   string
		found bool
	)
	// Later entries win, matching os/exec semantics.
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		if strings.TrimSpace(e[:idx]) == key {
			val, found = strings.TrimSpace(e[idx+1:]), true
		}
	}
	return val, found
}

// LookupFunc returns an os.LookupEnv-style function over env.
func LookupFunc(env []string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		return lookup(env, key)
	}
}

// parseBool parses common boolean values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, errors.Newf("invalid boolean %q", s)
	}
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Newf("invalid number %q", s)
	}
	return n, nil
}
