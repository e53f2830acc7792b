package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable holding the optional YAML file path.
const PathEnv = "CONFIG_FILE"

// LoadConfig fills target, a pointer to struct, from the YAML file named by
// CONFIG_FILE (if set) and then from environment variables.
//
// A field's variable is its `env` tag, or PARENT_CHILD derived from field
// names when the tag is empty; `env:"-"` skips the field. Embedded structs
// share their parent's prefix. Besides scalars, values may be durations
// (time.ParseDuration), comma separated string lists, and comma separated
// key=value string maps.
func LoadConfig(target interface{}) error {
	if target == nil {
		return errors.New("config: target is nil")
	}
	root := reflect.ValueOf(target)
	if root.Kind() != reflect.Ptr || root.Elem().Kind() != reflect.Struct {
		return errors.New("config: target must be pointer to struct")
	}

	if path := os.Getenv(PathEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("config: decode yaml: %w", err)
		}
	}

	return overlay(root.Elem(), "", os.LookupEnv)
}

type lookupFunc func(key string) (string, bool)

func overlay(v reflect.Value, prefix string, lookup lookupFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Anonymous {
			if err := overlay(fv, prefix, lookup); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("env")
		if tag == "-" {
			continue
		}
		key := envKey(prefix, sf.Name, tag)

		if fv.Kind() == reflect.Struct && fv.Type() != durationType {
			if err := overlay(fv, key, lookup); err != nil {
				return err
			}
			continue
		}

		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := set(fv, raw); err != nil {
			return fmt.Errorf("config: parse %s: %w", key, err)
		}
	}
	return nil
}

func envKey(prefix, name, tag string) string {
	if tag != "" {
		return upper(tag)
	}
	if prefix == "" {
		return upper(name)
	}
	return prefix + "_" + upper(name)
}

func upper(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}

var durationType = reflect.TypeOf(time.Duration(0))

type parser func(field reflect.Value, raw string) error

var parsers = map[reflect.Kind]parser{
	reflect.String: func(f reflect.Value, raw string) error {
		f.SetString(raw)
		return nil
	},
	reflect.Bool: func(f reflect.Value, raw string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err == nil {
			f.SetBool(b)
		}
		return err
	},
	reflect.Int:     parseInt,
	reflect.Int8:    parseInt,
	reflect.Int16:   parseInt,
	reflect.Int32:   parseInt,
	reflect.Int64:   parseInt,
	reflect.Uint:    parseUint,
	reflect.Uint8:   parseUint,
	reflect.Uint16:  parseUint,
	reflect.Uint32:  parseUint,
	reflect.Uint64:  parseUint,
	reflect.Float32: parseFloat,
	reflect.Float64: parseFloat,
	reflect.Slice:   parseStrings,
	reflect.Map:     parseStringMap,
}

func set(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err == nil {
			field.SetInt(int64(d))
		}
		return err
	}
	p, ok := parsers[field.Kind()]
	if !ok {
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return p(field, raw)
}

func parseInt(f reflect.Value, raw string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, f.Type().Bits())
	if err == nil {
		f.SetInt(n)
	}
	return err
}

func parseUint(f reflect.Value, raw string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, f.Type().Bits())
	if err == nil {
		f.SetUint(n)
	}
	return err
}

func parseFloat(f reflect.Value, raw string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), f.Type().Bits())
	if err == nil {
		f.SetFloat(n)
	}
	return err
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func parseStrings(f reflect.Value, raw string) error {
	if f.Type().Elem().Kind() != reflect.String {
		return fmt.Errorf("unsupported slice type %s", f.Type())
	}
	f.Set(reflect.ValueOf(splitList(raw)).Convert(f.Type()))
	return nil
}

func parseStringMap(f reflect.Value, raw string) error {
	if f.Type().Key().Kind() != reflect.String || f.Type().Elem().Kind() != reflect.String {
		return fmt.Errorf("unsupported map type %s", f.Type())
	}
	m := reflect.MakeMap(f.Type())
	for _, pair := range splitList(raw) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return fmt.Errorf("map entry %q is not key=value", pair)
		}
		m.SetMapIndex(reflect.ValueOf(strings.TrimSpace(k)), reflect.ValueOf(strings.TrimSpace(v)))
	}
	f.Set(m)
	return nil
}
