// Package configx holds the pieces of config loading shared by the server
// and the client: reading a JSON or YAML file into a DTO and overlaying
// VAULTSYNC_* environment variables.
package configx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Env.
const EnvPrefix = "VAULTSYNC_"

// ReadFile decodes path into dst. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func ReadFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, dst)
	default:
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Env overlays environment variables onto config fields. The first error
// is kept and returned by Err.
type Env struct {
	lookup func(string) (string, bool)
	err    error
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

// NewEnvFrom reads variables from m instead of the process environment.
func NewEnvFrom(m map[string]string) *Env {
	return &Env{lookup: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

func (e *Env) get(name string) (string, bool) {
	return e.lookup(EnvPrefix + name)
}

func (e *Env) String(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *Env) Int(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = n
}

func (e *Env) Duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = d
}

func (e *Env) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
}

func (e *Env) Err() error {
	return e.err
}
