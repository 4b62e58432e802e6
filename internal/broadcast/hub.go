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

// Package broadcast is the in-memory multicast hub: every committed frame
// is published once to every subscriber registered before the append, in
// id order, with per-subscriber backpressure (spec.md §4.3).
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/xlog"
)

// bufferSize is the bound on each subscriber's channel before it is
// marked Lagged. Chosen generously enough that a brief GC pause or
// scripting-scope eval doesn't immediately lag a subscriber.
const bufferSize = 256

// Receiver is a single subscriber's live feed. Frames returns the
// channel to read from; it is closed when the subscriber lags or
// Unsubscribe is called. Lagged reports whether closure was due to
// backpressure (true) or a clean unsubscribe (false).
type Receiver struct {
	hub  *Hub
	ch   chan frame.Frame
	mu   sync.Mutex
	done bool
	lagged bool
}

func (r *Receiver) Frames() <-chan frame.Frame { return r.ch }

func (r *Receiver) Lagged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lagged
}

// Unsubscribe detaches the receiver; safe to call more than once.
func (r *Receiver) Unsubscribe() {
	r.hub.remove(r)
}

func (r *Receiver) closeLagged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.lagged = true
	close(r.ch)
}

func (r *Receiver) closeClean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	close(r.ch)
}

// Filter decides whether a receiver wants a given frame; evaluated once
// per publish per receiver, so it should be cheap (topic-pattern and
// context checks, no I/O).
type Filter func(frame.Frame) bool

// Hub is safe for concurrent publishers and subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Receiver]Filter
	log         *zap.SugaredLogger
}

// NewHub builds a Hub; logger may be nil.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{subscribers: make(map[*Receiver]Filter), log: xlog.Safe(logger)}
}

// Subscribe registers a new receiver with filter, effective for any
// publish that happens strictly after this call returns.
func (h *Hub) Subscribe(filter Filter) *Receiver {
	r := &Receiver{hub: h, ch: make(chan frame.Frame, bufferSize)}
	h.mu.Lock()
	h.subscribers[r] = filter
	h.mu.Unlock()
	return r
}

func (h *Hub) remove(r *Receiver) {
	h.mu.Lock()
	_, ok := h.subscribers[r]
	delete(h.subscribers, r)
	h.mu.Unlock()
	if ok {
		r.closeClean()
	}
}

// Publish delivers f to every currently-registered receiver whose filter
// matches. A receiver whose buffer is full is marked Lagged and dropped
// rather than blocking this call (spec.md §4.3) — Publish must never
// stall on a slow subscriber.
func (h *Hub) Publish(f frame.Frame) {
	h.mu.Lock()
	snapshot := make(map[*Receiver]Filter, len(h.subscribers))
	for r, filt := range h.subscribers {
		snapshot[r] = filt
	}
	h.mu.Unlock()

	for r, filt := range snapshot {
		if filt != nil && !filt(f) {
			continue
		}
		select {
		case r.ch <- f:
		default:
			h.log.Warnw("subscriber lagged, dropping", "frame_id", string(f.ID), "topic", f.Topic)
			r.closeLagged()
			h.remove(r)
		}
	}
}
