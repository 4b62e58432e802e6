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

// Package subscribe unifies historical replay with live broadcast into a
// single gap-free, duplicate-free stream per subscriber (spec.md §4.4).
package subscribe

import (
	"context"
	"strings"

	"github.com/launix-de/memcp/internal/broadcast"
	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/framelog"
	"github.com/launix-de/memcp/internal/xserr"
)

// Options mirrors spec.md §4.4's per-subscription option set. Exactly one
// of FromBeginning/FromID/FromLatest should be set; the zero value means
// "historical from beginning" per spec.md §4.1's documented default.
type Options struct {
	Follow        bool
	FromLatest    bool
	FromID        frame.ID
	FromBeginning bool
	Limit         int
	TopicPattern  string
	ContextID     frame.ID
	AllContexts   bool
}

func matches(f frame.Frame, opts Options) bool {
	if !opts.AllContexts && opts.ContextID != "" && f.ContextID != opts.ContextID {
		return false
	}
	if opts.TopicPattern == "" {
		return true
	}
	if strings.HasSuffix(opts.TopicPattern, "*") {
		prefix := strings.TrimSuffix(opts.TopicPattern, "*")
		return strings.HasPrefix(f.Topic, prefix)
	}
	return f.Topic == opts.TopicPattern
}

// Subscription is a live, cancellable handle; read Frames() until it
// closes. Err reports why it closed: nil on clean EOF/cancel, xserr.Lagged
// if the live buffer overflowed.
type Subscription struct {
	out    chan frame.Frame
	cancel context.CancelFunc
	errCh  chan error
}

func (s *Subscription) Frames() <-chan frame.Frame { return s.out }

func (s *Subscription) Cancel() { s.cancel() }

// Err blocks until the subscription ends and returns its terminal error,
// if any. Call after draining Frames().
func (s *Subscription) Err() error { return <-s.errCh }

// Open starts a subscription against log+hub per the six-step protocol in
// spec.md §4.4. The Open Question in spec.md §9 is resolved here: the
// historical cutover point is the log's highest id observed at the
// moment the live receiver is registered (step 1), not the id at the
// moment Open itself was called — registering first and snapshotting
// second is what makes frames committed concurrently with history-scan
// neither duplicated nor lost.
func Open(ctx context.Context, log *framelog.Log, hub *broadcast.Hub, opts Options) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		out:    make(chan frame.Frame),
		cancel: cancel,
		errCh:  make(chan error, 1),
	}

	go func() {
		defer close(sub.out)

		filter := func(f frame.Frame) bool { return matches(f, opts) }

		// step 1: register the live receiver before reading any history.
		var recv *broadcast.Receiver
		if !opts.FromLatest || opts.Follow {
			recv = hub.Subscribe(filter)
			defer recv.Unsubscribe()
		}

		delivered := 0
		var lastHistorical frame.ID

		if !opts.FromLatest {
			// step 2: determine the historical start id.
			cutoff, err := log.LatestID() // step 1 already registered recv above
			if err != nil {
				sub.errCh <- err
				return
			}

			scanOpts := framelog.ScanOptions{
				TopicPattern: opts.TopicPattern,
				ContextID:    opts.ContextID,
				AllContexts:  opts.AllContexts,
			}
			if opts.FromID != "" {
				scanOpts.FromID = opts.FromID
			}

			// step 3: scan history up to and including cutoff.
			frames, err := log.Scan(scanOpts)
			if err != nil {
				sub.errCh <- err
				return
			}
			for _, f := range frames {
				if f.ID > cutoff {
					break
				}
				select {
				case sub.out <- f:
					delivered++
					lastHistorical = f.ID
					if opts.Limit > 0 && delivered >= opts.Limit {
						sub.errCh <- nil
						return
					}
				case <-ctx.Done():
					sub.errCh <- nil
					return
				}
			}
		}

		// step 5: historical-only subscriptions stop here.
		if !opts.Follow {
			sub.errCh <- nil
			return
		}

		// step 4/6: drain live broadcast, discarding anything already delivered.
		for {
			select {
			case f, ok := <-recv.Frames():
				if !ok {
					if recv.Lagged() {
						sub.errCh <- xserr.Lagged
					} else {
						sub.errCh <- nil
					}
					return
				}
				if f.ID <= lastHistorical {
					continue
				}
				select {
				case sub.out <- f:
					delivered++
					if opts.Limit > 0 && delivered >= opts.Limit {
						sub.errCh <- nil
						return
					}
				case <-ctx.Done():
					sub.errCh <- nil
					return
				}
			case <-ctx.Done():
				sub.errCh <- nil
				return
			}
		}
	}()

	return sub
}
