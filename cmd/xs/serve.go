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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/launix-de/memcp/internal/broadcast"
	"github.com/launix-de/memcp/internal/cas"
	"github.com/launix-de/memcp/internal/framelog"
	"github.com/launix-de/memcp/internal/processor"
	"github.com/launix-de/memcp/internal/reaper"
	"github.com/launix-de/memcp/internal/transport"
	"github.com/launix-de/memcp/internal/xlog"
	"github.com/launix-de/memcp/internal/xsconfig"
)

// store bundles every daemon-side component serve/repl need, so both
// entrypoints share one construction path.
type store struct {
	cfg  *xsconfig.Config
	log  *framelog.Log
	hub  *broadcast.Hub
	cas  *cas.Store
	reap *reaper.Reaper
	proc *processor.Runtime
	zlog interface {
		Sync() error
	}
}

func newStore(cfg *xsconfig.Config) (*store, error) {
	zlog := xlog.New(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("xs: data dir: %w", err)
	}

	var backend cas.Backend
	switch cfg.CASBackend {
	case xsconfig.CASS3:
		backend = cas.NewS3Backend(cas.S3Config{
			Bucket: cfg.S3Bucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint, Prefix: cfg.S3Prefix,
		})
	case xsconfig.CASCeph:
		backend = cas.NewCephBackend(cas.CephConfig{Pool: cfg.CASRoot, Prefix: cfg.S3Prefix})
	default:
		root := cfg.CASRoot
		if root == "" {
			root = filepath.Join(cfg.DataDir, "cas")
		}
		if err := os.MkdirAll(root, 0750); err != nil {
			return nil, fmt.Errorf("xs: cas dir: %w", err)
		}
		backend = cas.NewFSBackend(root)
	}
	store_ := cas.New(backend, cfg.CASCompress)

	hub := broadcast.NewHub(zlog)
	fl, err := framelog.Open(filepath.Join(cfg.DataDir, "frames.db"), hub, zlog)
	if err != nil {
		return nil, err
	}

	period, err := time.ParseDuration(cfg.ReaperPeriod)
	if err != nil {
		period = 30 * time.Second
	}
	r := reaper.New(fl, store_, period, zlog)
	rt := processor.New(fl, hub, store_, zlog)

	return &store{cfg: cfg, log: fl, hub: hub, cas: store_, reap: r, proc: rt, zlog: zlog}, nil
}

func (s *store) Close() {
	s.reap.Stop()
	s.log.Close()
	s.zlog.Sync()
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the xs daemon (default when no subcommand is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a JSON config file")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := xsconfig.Load(configPath)
	if err != nil {
		return &cliError{code: exitUsage, err: err}
	}

	st, err := newStore(cfg)
	if err != nil {
		return &cliError{code: exitIOError, err: err}
	}
	defer st.Close()

	st.reap.Start()

	if configPath != "" {
		stopWatch, err := xsconfig.Watch(configPath, func(next *xsconfig.Config) {
			fmt.Fprintln(os.Stderr, "xs: config changed; restart to pick up listen-address/cas-backend changes")
			_ = next
		}, nil)
		if err == nil {
			defer stopWatch()
		}
	}

	srv := transport.New(st.log, st.hub, st.cas, nil)
	httpServer := &http.Server{Addr: cfg.Addr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "xs: listening on %s\n", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return &cliError{code: exitIOError, err: err}
	case <-sig:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}
	return nil
}
