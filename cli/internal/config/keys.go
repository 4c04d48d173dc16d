package config

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"commitmate/cli/internal/erruser"
)

// field is one settable configuration key, derived from the Config toml tags.
type field struct {
	key   string
	name  string
	index int
}

func fields() []field {
	t := reflect.TypeOf(Config{})
	out := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		key := strings.Split(sf.Tag.Get("toml"), ",")[0]
		if key == "" || key == "-" {
			continue
		}
		out = append(out, field{key: key, name: sf.Name, index: i})
	}
	return out
}

// Keys returns every configuration key in declaration order.
func Keys() []string {
	fs := fields()
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.key
	}
	return keys
}

func findField(key string) (field, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range fields() {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

func keyFor(structField string) string {
	for _, f := range fields() {
		if f.name == structField {
			return f.key
		}
	}
	return structField
}

// set parses raw for the field's kind and stores it in cfg. Lists are
// comma separated.
func (f field) set(cfg *Config, raw string) error {
	v := reflect.ValueOf(cfg).Elem().Field(f.index)
	switch v.Kind() {
	case reflect.String:
		v.SetString(strings.TrimSpace(raw))
	case reflect.Int:
		n, err := parseInt(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Float64:
		x, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return errors.Newf("invalid number %q", raw)
		}
		v.SetFloat(x)
	case reflect.Bool:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Slice:
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		v.Set(reflect.ValueOf(items))
	default:
		return errors.Newf("unsupported kind %s for %s", v.Kind(), f.key)
	}
	return nil
}

func (f field) value(cfg Config) any {
	return reflect.ValueOf(cfg).Field(f.index).Interface()
}

// Entry is one key and its display value.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Entries returns every key of cfg with a display value. Literal API keys are
// masked; env references are shown as written.
func Entries(cfg Config) []Entry {
	var out []Entry
	for _, f := range fields() {
		var s string
		switch v := f.value(cfg).(type) {
		case []string:
			s = strings.Join(v, ",")
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			s = toString(v)
		}
		if f.key == "api_key" {
			s = MaskKey(s)
		}
		out = append(out, Entry{Key: f.key, Value: s})
	}
	return out
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// MaskKey hides a literal credential, keeping env references readable.
func MaskKey(s string) string {
	if s == "" || strings.HasPrefix(s, "env:") || strings.HasPrefix(s, "$") {
		return s
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// SetValue parses raw into key on cfg and validates the result. cfg is left
// unchanged on error.
func SetValue(cfg *Config, key, raw string) error {
	f, ok := findField(key)
	if !ok {
		return erruser.New("Unknown config key "+strings.TrimSpace(key)+"; valid keys: "+strings.Join(Keys(), ", ")+".", nil)
	}
	next := *cfg
	if err := f.set(&next, raw); err != nil {
		return erruser.New("Invalid value for "+f.key+".", err)
	}
	if err := Validate(next); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// Save writes key=raw into the TOML file at path, preserving the other keys
// already present. The value is validated against the defaults before
// writing.
func Save(path, key, raw string) error {
	f, ok := findField(key)
	if !ok {
		return erruser.New("Unknown config key "+strings.TrimSpace(key)+"; valid keys: "+strings.Join(Keys(), ", ")+".", nil)
	}
	probe := DefaultConfig()
	if err := SetValue(&probe, f.key, raw); err != nil {
		return err
	}

	doc := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &doc); err != nil {
			return erruser.New("Could not read "+path+".", err)
		}
	}
	doc[f.key] = f.value(probe)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return erruser.New("Could not create config directory.", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return erruser.New("Could not write "+path+".", err)
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		_ = tmp.Close()
		return erruser.New("Could not write "+path+".", err)
	}
	if err := tmp.Close(); err != nil {
		return erruser.New("Could not write "+path+".", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return erruser.New("Could not write "+path+".", err)
	}
	return nil
}

// Environ returns env with the variables of repoRoot/.env appended for keys
// env does not already define. A missing .env is not an error.
func Environ(repoRoot string, env []string) ([]string, error) {
	if repoRoot == "" {
		return env, nil
	}
	path := filepath.Join(repoRoot, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return env, errors.Wrapf(err, "stat %s", path)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return env, errors.Wrapf(err, "parse %s", path)
	}
	out := append([]string(nil), env...)
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := lookup(env, k); ok {
			continue
		}
		out = append(out, k+"="+vars[k])
	}
	return out, nil
}
