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

// Package reaper enforces time:, head:, and ephemeral TTL policies
// (ephemeral is enforced simply by never persisting, in framelog.Append;
// this package handles the two policies that require a background sweep
// or a lazy re-check, per spec.md §4.5).
package reaper

import (
	"time"

	"go.uber.org/zap"

	"github.com/launix-de/memcp/internal/cas"
	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/framelog"
	"github.com/launix-de/memcp/internal/xlog"
	"github.com/launix-de/memcp/scm"
)

// Reaper periodically sweeps time:-TTL frames and, on request, lazily
// re-checks a head:N policy for a given (topic, context).
type Reaper struct {
	log    *framelog.Log
	store  *cas.Store
	period time.Duration
	stop   chan struct{}
	zlog   *zap.SugaredLogger
}

// New builds a Reaper; logger may be nil.
func New(log *framelog.Log, store *cas.Store, period time.Duration, logger *zap.SugaredLogger) *Reaper {
	if period <= 0 {
		period = time.Second
	}
	return &Reaper{log: log, store: store, period: period, stop: make(chan struct{}), zlog: xlog.Safe(logger)}
}

// Start schedules the periodic sweep on the shared task scheduler
// (scm/scheduler.go, reused directly — the reaper is just another
// cancellable cooperative task per spec.md §5).
func (r *Reaper) Start() {
	var tick func()
	tick = func() {
		select {
		case <-r.stop:
			return
		default:
		}
		r.sweepOnce()
		scm.DefaultScheduler.ScheduleAfter(r.period, tick)
	}
	scm.DefaultScheduler.ScheduleAfter(r.period, tick)
}

func (r *Reaper) Stop() {
	close(r.stop)
}

// sweepOnce evicts every frame whose time: TTL has elapsed. Each removal is
// its own framelog.Remove transaction, so the log never exposes index
// entries without their primary record; the removals of one sweep are not
// committed together.
func (r *Reaper) sweepOnce() {
	frames, err := r.log.Scan(framelog.ScanOptions{AllContexts: true})
	if err != nil {
		return
	}
	now := time.Now()
	var toEvict []frame.ID
	for _, f := range frames {
		if f.TTL.Kind != frame.Time {
			continue
		}
		commitTime := commitTimeOf(f.ID)
		if commitTime.Add(time.Duration(f.TTL.Millis) * time.Millisecond).Before(now) || commitTime.Add(time.Duration(f.TTL.Millis)*time.Millisecond).Equal(now) {
			toEvict = append(toEvict, f.ID)
		}
	}
	for _, id := range toEvict {
		r.log.Remove(id)
	}
	if len(toEvict) > 0 {
		r.zlog.Infow("time: TTL sweep evicted frames", "count", len(toEvict))
		r.gc()
	}
}

// LazyTrimHead re-evaluates a head:N policy for (topic, contextID), to
// cover crashes between an append and its trim. framelog.Append already
// enforces head:N at write time. This runs only when called; no read path
// in this repository calls it.
func (r *Reaper) LazyTrimHead(topic string, contextID frame.ID, n int) {
	frames, err := r.log.Scan(framelog.ScanOptions{TopicPattern: topic, ContextID: contextID})
	if err != nil || len(frames) <= n {
		return
	}
	for _, f := range frames[:len(frames)-n] {
		r.log.Remove(f.ID)
	}
}

// gc sweeps CAS for blobs no longer referenced by any live frame.
func (r *Reaper) gc() {
	if r.store == nil {
		return
	}
	frames, err := r.log.Scan(framelog.ScanOptions{AllContexts: true})
	if err != nil {
		return
	}
	live := make(map[string]bool, len(frames))
	for _, f := range frames {
		if f.Hash != "" {
			live[f.Hash] = true
		}
	}
	removed, err := r.store.GC(live)
	if err != nil {
		r.zlog.Warnw("cas gc failed", "error", err)
		return
	}
	if removed > 0 {
		r.zlog.Infow("cas gc removed unreferenced blobs", "count", removed)
	}
}

// commitTimeOf recovers the wall-clock commit time embedded in an id's
// leading 16 hex microsecond digits (see internal/frame.Generator).
func commitTimeOf(id frame.ID) time.Time {
	if len(id) < 16 {
		return time.Time{}
	}
	var micros int64
	for _, c := range id[:16] {
		micros <<= 4
		switch {
		case c >= '0' && c <= '9':
			micros |= int64(c - '0')
		case c >= 'a' && c <= 'f':
			micros |= int64(c-'a') + 10
		}
	}
	return time.UnixMicro(micros)
}
