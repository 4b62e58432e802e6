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
	"context"
	"time"

	"github.com/launix-de/memcp/internal/broadcast"
	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/subscribe"
	"github.com/launix-de/memcp/scm"
)

// ActorSpec is a registration's declared behavior: which topic pattern
// feeds it, the handler lambda source, and the persistent session bindings
// it should see in addition to the runtime's own host bindings. Source is
// evaluated once, when the actor starts, against its persistent scope —
// every subsequent frame is delivered by Apply-ing the resulting closure,
// so state the handler body closes over survives across invocations.
type ActorSpec struct {
	ContextID    frame.ID
	Name         string
	TopicPattern string
	Source       scm.Scmer // a scm lambda expression: (lambda (frame) ...)
	WithEnv      map[string]interface{}
	PulseEvery   time.Duration // 0 disables synthetic pulse frames
}

// Actor is a stateful processor: one scripting scope persists across every
// invocation of Handler, for the lifetime of the actor, per spec.md
// §4.6.2. Supersession (a newer registration for the same name) stops the
// old actor and starts a fresh one with a fresh scope.
type Actor struct {
	rt        *Runtime
	spec      ActorSpec
	handlerID string
	scope     *scm.Env
	handler   scm.Scmer
	guard     *scopeGuard
	sub       *subscribe.Subscription
	cancel    context.CancelFunc
	done      chan struct{}
}

// StartActor registers spec with rt's registry, superseding any existing
// actor of the same name in the same context, and begins consuming the
// matching topic.
func StartActor(rt *Runtime, spec ActorSpec) *Actor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor{
		rt:        rt,
		spec:      spec,
		handlerID: string(frame.NewContextID()),
		guard:     newScopeGuard(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	a.scope = rt.HostEnv(spec.ContextID, a.handlerID, spec.WithEnv)
	a.scope.Vars["session"] = scm.NewSession()
	a.handler = scm.Eval(spec.Source, a.scope)

	a.sub = subscribe.Open(ctx, rt.Log, rt.Hub, subscribe.Options{
		Follow:       true,
		FromLatest:   true,
		TopicPattern: spec.TopicPattern,
		ContextID:    spec.ContextID,
	})

	go a.run()

	rt.Registry.Supersede(spec.ContextID, spec.Name, a)
	return a
}

func (a *Actor) run() {
	defer close(a.done)

	var pulseTick <-chan time.Time
	if a.spec.PulseEvery > 0 {
		t := time.NewTicker(a.spec.PulseEvery)
		defer t.Stop()
		pulseTick = t.C
	}

	for {
		select {
		case f, ok := <-a.sub.Frames():
			if !ok {
				return
			}
			// an actor never re-triggers on its own output.
			if handlerIDOf(f) == a.handlerID {
				continue
			}
			a.invoke(encodeFrame(f))
		case <-pulseTick:
			a.invoke(scm.Symbol("pulse"))
		}
	}
}

// invoke runs Handler against the current frame under the read side of
// the scope guard, so a concurrent Stop/supersession cannot tear down the
// scope mid-evaluation.
func (a *Actor) invoke(arg scm.Scmer) {
	release := a.guard.acquireRead()
	defer release()
	defer func() {
		if r := recover(); r != nil {
			// handler errors are isolated per invocation; the actor itself
			// keeps running so one bad frame can't kill the whole scope.
			a.rt.Zlog.Errorw("actor handler panicked", "name", a.spec.Name, "context_id", string(a.spec.ContextID), "error", r)
		}
	}()
	scm.Apply(a.handler, arg)
}

// Stop cancels the subscription and waits for the in-flight invocation (if
// any) to finish before returning, guarding the scope teardown against a
// handler still reading/writing it.
func (a *Actor) Stop() {
	release := a.guard.acquireWrite()
	defer release()
	a.cancel()
	<-a.done
}

// Broadcast exposes the hub this actor reads from, so tests and the
// transport layer can both observe the same frames an actor would see.
func (a *Actor) Broadcast() *broadcast.Hub { return a.rt.Hub }
