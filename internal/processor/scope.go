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

import "sync"

// scopeState mirrors the COLD/SHARED/WRITE lifecycle storage's
// SharedResource interface described for lazily-loaded tables, repurposed
// here to guard an actor's persistent scm.Env: COLD before the first
// invocation builds it, SHARED while one or more handler calls are
// reading/evaluating against it concurrently, WRITE while a hot-reload
// swap is replacing it. An actor only ever runs one handler at a time (its
// input is a single sequential frame stream), so in practice SHARED never
// exceeds a single holder — the states still matter because Supersede can
// race a handler invocation mid-flight.
type scopeState uint8

const (
	scopeCold scopeState = iota
	scopeShared
	scopeWrite
)

// scopeGuard coordinates one actor's persistent scope against concurrent
// handler invocation and hot-reload supersession.
type scopeGuard struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state scopeState
}

func newScopeGuard() *scopeGuard {
	g := &scopeGuard{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// acquireRead blocks until no exclusive swap is in progress, then marks
// the scope shared for the duration of one handler invocation.
func (g *scopeGuard) acquireRead() func() {
	g.mu.Lock()
	for g.state == scopeWrite {
		g.cond.Wait()
	}
	g.state = scopeShared
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.state = scopeCold
		g.cond.Broadcast()
		g.mu.Unlock()
	}
}

// acquireWrite blocks until the scope is idle, then marks it exclusive for
// the duration of a supersession swap (replacing the persistent scm.Env).
func (g *scopeGuard) acquireWrite() func() {
	g.mu.Lock()
	for g.state != scopeCold {
		g.cond.Wait()
	}
	g.state = scopeWrite
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.state = scopeCold
		g.cond.Broadcast()
		g.mu.Unlock()
	}
}
