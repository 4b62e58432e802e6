/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

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

// Package iolimit bounds the number of goroutines allowed in a blocking
// I/O call (the frame log's bbolt transactions) at once, so a
// burst of subscribers or processors can't exhaust file descriptors or
// stall the daemon under disk pressure.
package iolimit

import "runtime"

// Semaphore is a counting lock: acquire blocks until a slot is free, the
// returned release func must be called exactly once.
type Semaphore struct {
	slots chan struct{}
}

// New creates a semaphore with workers slots (runtime.NumCPU() if <= 0).
func New(workers int) *Semaphore {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}
	s := &Semaphore{slots: make(chan struct{}, workers)}
	for i := 0; i < workers; i++ {
		s.slots <- struct{}{}
	}
	return s
}

// Acquire blocks until a slot is available and returns a release func.
func (s *Semaphore) Acquire() func() {
	<-s.slots
	return func() { s.slots <- struct{}{} }
}
