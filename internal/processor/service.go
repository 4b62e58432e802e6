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

package processor

import (
	"bufio"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/framelog"
	"github.com/launix-de/memcp/internal/subscribe"
)

// ServiceSpec is a registration's declared out-of-process command, per
// spec.md §4.6.1. Every line the command writes to stdout becomes one
// frame on "<Name>.recv"; if Duplex, every frame on "<Name>.send" is
// written to the command's stdin as one line.
type ServiceSpec struct {
	ContextID frame.ID
	Name      string
	Command   string
	Args      []string
	Duplex    bool
}

// Service supervises one external process: restarts it with exponential
// backoff (starting at 1s) on unexpected exit, gives up after a bounded
// number of restarts, and stops restarting once Stop is called (the
// standard distinguishing mark of a deliberate stop vs. a crash).
type Service struct {
	rt      *Runtime
	spec    ServiceSpec
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

func StartService(rt *Runtime, spec ServiceSpec) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{rt: rt, spec: spec, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	go s.supervise()
	rt.Registry.Supersede(spec.ContextID, spec.Name, s)
	return s
}

func (s *Service) supervise() {
	defer close(s.done)

	const maxRestarts = 10
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Second
	exp.MaxElapsedTime = 0 // bounded by restart count, not elapsed time
	bo := backoff.WithMaxRetries(exp, maxRestarts)

	for {
		if s.ctx.Err() != nil {
			return
		}
		err := s.runOnce()
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped || s.ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			s.rt.Zlog.Errorw("service exceeded restart limit, giving up", "name", s.spec.Name, "error", err)
			return
		}
		s.rt.Zlog.Warnw("service exited, restarting", "name", s.spec.Name, "error", err, "backoff", wait.String())
		select {
		case <-time.After(wait):
		case <-s.ctx.Done():
			return
		}
	}
}

// runOnce spawns the command once and pumps stdout -> "<Name>.recv" and,
// if Duplex, "<Name>.send" -> stdin, until the process exits or Stop is
// called.
func (s *Service) runOnce() error {
	cmd := exec.CommandContext(s.ctx, s.spec.Command, s.spec.Args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stdin interface {
		Write([]byte) (int, error)
	}
	if s.spec.Duplex {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return err
		}
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			_, _ = s.rt.Log.Append(s.spec.Name+".recv", framelog.AppendOptions{
				ContextID: s.spec.ContextID,
				Hash:      s.putLine(scanner.Text()),
			})
		}
	}()

	var sendCancel context.CancelFunc
	if s.spec.Duplex {
		var sendCtx context.Context
		sendCtx, sendCancel = context.WithCancel(s.ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pumpStdin(sendCtx, stdin)
		}()
	}

	err = cmd.Wait()
	if sendCancel != nil {
		sendCancel()
	}
	wg.Wait()
	return err
}

func (s *Service) putLine(line string) string {
	hash, err := s.rt.CAS.Put([]byte(line))
	if err != nil {
		return ""
	}
	return hash
}

// pumpStdin subscribes to "<Name>.send" (live only; a restarted process
// should not replay history into the new instance) and writes every frame
// body as one line to the process's stdin.
func (s *Service) pumpStdin(ctx context.Context, stdin interface{ Write([]byte) (int, error) }) {
	sub := subscribe.Open(ctx, s.rt.Log, s.rt.Hub, subscribe.Options{
		Follow:       true,
		FromLatest:   true,
		TopicPattern: s.spec.Name + ".send",
		ContextID:    s.spec.ContextID,
	})
	for f := range sub.Frames() {
		if f.Hash == "" {
			continue
		}
		body, err := s.rt.CAS.Get(f.Hash)
		if err != nil {
			continue
		}
		_, _ = stdin.Write(append(body, '\n'))
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
}
