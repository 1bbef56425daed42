package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// Feeder errors.
var (
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
	ErrFieldNotSettable        = errors.New("field cannot be set")
)

// LoadYAMLFile reads a YAML config file. Defaults are not applied; call
// ValidateConfig or use Load.
func LoadYAMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml config: %w", err)
	}
	return cfg, nil
}

// LoadTOMLFile reads a TOML config file. Defaults are not applied; call
// ValidateConfig or use Load.
func LoadTOMLFile(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse toml config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a config file, selecting the format by extension
// (.yaml/.yml/.toml).
func LoadFile(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAMLFile(path)
	case ".toml":
		return LoadTOMLFile(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, filepath.Ext(path))
	}
}

// Load builds the effective configuration: the file at path (when
// non-empty), overlaid with environment variables using the given prefix,
// then defaulted and validated.
func Load(path, envPrefix string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := FeedEnv(cfg, envPrefix); err != nil {
		return nil, err
	}
	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FeedEnv overlays environment variables onto the config. Fields tagged
// `env:"NAME"` are read from PREFIX_NAME (or NAME when the prefix is
// empty); nested structs are walked recursively with the same prefix.
func FeedEnv(cfg *Config, prefix string) error {
	rv := reflect.ValueOf(cfg).Elem()
	return feedStructFromEnv(rv, strings.ToUpper(prefix))
}

func feedStructFromEnv(rv reflect.Value, prefix string) error {
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rv.Type().Field(i)

		if err := feedFieldFromEnv(field, &fieldType, prefix); err != nil {
			return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
		}
	}
	return nil
}

func feedFieldFromEnv(field reflect.Value, fieldType *reflect.StructField, prefix string) error {
	switch field.Kind() {
	case reflect.Struct:
		return feedStructFromEnv(field, prefix)
	case reflect.Pointer:
		if !field.IsZero() && field.Elem().Kind() == reflect.Struct {
			return feedStructFromEnv(field.Elem(), prefix)
		}
		return nil
	default:
		envTag, exists := fieldType.Tag.Lookup("env")
		if !exists {
			return nil
		}

		envName := strings.ToUpper(envTag)
		if prefix != "" {
			envName = prefix + "_" + envName
		}
		envValue := os.Getenv(envName)
		if envValue == "" {
			return nil
		}
		return setFieldValue(field, envValue)
	}
}

// setFieldValue converts and sets a field value.
func setFieldValue(field reflect.Value, strValue string) error {
	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}

	if !field.CanSet() {
		return ErrFieldNotSettable
	}

	field.Set(reflect.ValueOf(convertedValue))
	return nil
}
