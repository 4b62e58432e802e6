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
	"fmt"
	"time"

	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/xserr"
	"github.com/launix-de/memcp/scm"
)

// ActionSpec is a registration's declared behavior for an on-demand,
// stateless closure, per spec.md §4.6.3. Source is an unevaluated lambda
// expression; unlike an Actor's Handler (evaluated once, then reused
// across every invocation against one persistent scope), Source is
// re-evaluated fresh against a brand-new host environment on every Call,
// so no state can leak between calls.
type ActionSpec struct {
	ContextID frame.ID
	Name      string
	Source    scm.Scmer
	WithEnv   map[string]interface{}
	Timeout   time.Duration // 0 disables the per-invocation deadline
}

// Action registers spec and never itself holds state between calls — each
// Call gets a fresh host environment, so two concurrent calls never share
// a scm.Env the way an Actor's handler does.
type Action struct {
	rt   *Runtime
	spec ActionSpec
}

func StartAction(rt *Runtime, spec ActionSpec) *Action {
	a := &Action{rt: rt, spec: spec}
	rt.Registry.Supersede(spec.ContextID, spec.Name, a)
	return a
}

func (a *Action) Stop() {}

// Call invokes the action's handler with args, isolating panics into an
// error and — when Timeout is set — bounding how long the call may run.
// A timed-out call's goroutine is abandoned (the scm evaluator has no
// cooperative cancellation point), mirroring the same caveat the teacher's
// own session-bound query callbacks carry.
func (a *Action) Call(args ...scm.Scmer) (result scm.Scmer, err error) {
	env := a.rt.HostEnv(a.spec.ContextID, "", a.spec.WithEnv)

	type outcome struct {
		result scm.Scmer
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{nil, fmt.Errorf("%w: %v", xserr.ProcessorError, r)}
			}
		}()
		handler := scm.Eval(a.spec.Source, env)
		done <- outcome{scm.Apply(handler, args...), nil}
	}()

	if a.spec.Timeout <= 0 {
		o := <-done
		return o.result, o.err
	}

	select {
	case o := <-done:
		return o.result, o.err
	case <-time.After(a.spec.Timeout):
		return nil, fmt.Errorf("%w: action %q timed out after %s", xserr.Unavailable, a.spec.Name, a.spec.Timeout)
	}
}
