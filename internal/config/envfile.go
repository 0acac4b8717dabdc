package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

// EnvLookup layers an env file under base. An explicitly configured
// SQLASSIST_ENV_FILE must exist; the implicit ./.env is optional.
func EnvLookup(base LookupFunc) (LookupFunc, error) {
	path, explicit := base("SQLASSIST_ENV_FILE")
	path = strings.TrimSpace(path)
	if !explicit || path == "" {
		path = defaultEnvFile
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return base, nil
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	fileLookup, err := EnvFileLookup(path)
	if err != nil {
		return nil, err
	}
	return Chain(base, fileLookup), nil
}

// EnvFileLookup reads KEY=value lines from path.
func EnvFileLookup(path string) (LookupFunc, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if !v.IsSet(key) {
			return "", false
		}
		return v.GetString(key), true
	}, nil
}

// Chain returns the value from the first lookup that has the key.
func Chain(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if value, ok := lookup(key); ok {
				return value, true
			}
		}
		return "", false
	}
}
