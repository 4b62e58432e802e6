/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package xsconfig loads the daemon's configuration from a JSON file plus
// environment overrides, and hot-reloads it with fsnotify the way the
// teacher watches its schema files for changes.
package xsconfig

import (
	"encoding/json"
	"fmt"
	"os"

	units "github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"
)

// CASBackend selects which internal/cas.Backend implementation the daemon
// constructs; "fs" uses CASRoot (DataDir/cas when empty), "s3" needs the
// S3* fields, "ceph" takes its pool from CASRoot and its object prefix
// from S3Prefix (only honored in a ceph-tagged build).
type CASBackend string

const (
	CASFilesystem CASBackend = "fs"
	CASS3         CASBackend = "s3"
	CASCeph       CASBackend = "ceph"
)

// Config is the daemon's full runtime configuration, per spec.md §6's
// listen address / store root / TTL sweep period surface.
type Config struct {
	Addr           string            `json:"addr"`
	DataDir        string            `json:"data_dir"`
	CASBackend     CASBackend        `json:"cas_backend"`
	CASRoot        string            `json:"cas_root"`
	CASCompress    bool              `json:"cas_compress"`
	CASMaxBytes    string            `json:"cas_max_bytes"` // human size, e.g. "10GB"; "" = unbounded
	S3Bucket       string            `json:"s3_bucket"`
	S3Region       string            `json:"s3_region"`
	S3Endpoint     string            `json:"s3_endpoint"`
	S3Prefix       string            `json:"s3_prefix"`
	ReaperPeriod   string            `json:"reaper_period"` // Go duration syntax, e.g. "30s"
	LogLevel       string            `json:"log_level"`
	ServiceWithEnv map[string]string `json:"service_with_env"` // parsed from the file; nothing in the daemon reads it
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr:         ":8089",
		DataDir:      "./xs-data",
		CASBackend:   CASFilesystem,
		CASRoot:      "./xs-data/cas",
		ReaperPeriod: "30s",
		LogLevel:     "info",
	}
}

// Load reads path (if non-empty) as JSON over the defaults, then applies
// environment overrides: XS_ADDR, XS_DATA_DIR, XS_CAS_BACKEND, XS_LOG_LEVEL.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("xsconfig: read %s: %w", path, err)
			}
		} else if err := json.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("xsconfig: parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if cfg.CASMaxBytes != "" {
		if _, err := units.FromHumanSize(cfg.CASMaxBytes); err != nil {
			return nil, fmt.Errorf("xsconfig: cas_max_bytes %q: %w", cfg.CASMaxBytes, err)
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("XS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("XS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("XS_CAS_BACKEND"); v != "" {
		cfg.CASBackend = CASBackend(v)
	}
	if v := os.Getenv("XS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// CASMaxBytesValue parses CASMaxBytes into a byte count, 0 meaning unbounded.
func (c *Config) CASMaxBytesValue() int64 {
	if c.CASMaxBytes == "" {
		return 0
	}
	n, _ := units.FromHumanSize(c.CASMaxBytes) // validated in Load
	return n
}

// Watch reloads path on every write or create event and invokes onChange
// with the newly parsed Config; parse errors are reported on errCh rather
// than applied, leaving the previous config in effect. Watch returns at
// once; the watching goroutine runs until the returned stop function is
// called.
func Watch(path string, onChange func(*Config), errCh chan<- error) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xsconfig: watch: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("xsconfig: watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					if errCh != nil {
						errCh <- err
					}
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if errCh != nil {
					errCh <- err
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
