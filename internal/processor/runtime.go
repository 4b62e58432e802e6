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

// Package processor is the runtime driving the three processor kinds —
// services, actors, actions — over the embedded scm closure evaluator
// (spec.md §4.6).
package processor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/launix-de/memcp/internal/broadcast"
	"github.com/launix-de/memcp/internal/cas"
	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/framelog"
	"github.com/launix-de/memcp/internal/xlog"
	"github.com/launix-de/memcp/scm"
)

// Kind distinguishes the three processor flavors for registry bookkeeping.
type Kind int

const (
	KindService Kind = iota
	KindActor
	KindAction
)

// key identifies a processor instance: one (context, base name) pair can
// only ever have one live instance of a given kind, per spec.md §3's
// "newer registration supersedes" lifecycle rule.
type key struct {
	contextID frame.ID
	name      string
}

// Registry is the concurrent map keyed by (context_id, name) spec.md §5
// calls for. It does not itself know about Kind — instances are typed by
// the concrete struct stored.
type Registry struct {
	mu   sync.Mutex
	live map[key]interface{ Stop() }
}

func NewRegistry() *Registry {
	return &Registry{live: make(map[key]interface{ Stop() })}
}

// Supersede stops whatever instance is currently registered under
// (contextID, name), if any, then stores next in its place. This is the
// hot-reload/supersession path shared by all three processor kinds.
func (r *Registry) Supersede(contextID frame.ID, name string, next interface{ Stop() }) {
	k := key{contextID, name}
	r.mu.Lock()
	prev, ok := r.live[k]
	r.live[k] = next
	r.mu.Unlock()
	if ok {
		prev.Stop()
	}
}

// Remove stops and unregisters the instance at (contextID, name), if it
// is still the one last registered (guards against a stale terminate
// racing a newer registration).
func (r *Registry) Remove(contextID frame.ID, name string, instance interface{ Stop() }) {
	k := key{contextID, name}
	r.mu.Lock()
	cur, ok := r.live[k]
	removed := ok && cur == instance
	if removed {
		delete(r.live, k)
	}
	r.mu.Unlock()
	if removed {
		instance.Stop()
	}
}

// Runtime wires the processor state machines to the store components
// they depend on: the frame log (to append outputs and read registration
// frames), the broadcast hub (to subscribe for actor/service input), and
// CAS (for host-provided `.cas` bindings).
type Runtime struct {
	Log      *framelog.Log
	Hub      *broadcast.Hub
	CAS      *cas.Store
	Registry *Registry
	Zlog     *zap.SugaredLogger
}

// New builds a Runtime; logger may be nil.
func New(log *framelog.Log, hub *broadcast.Hub, store *cas.Store, logger *zap.SugaredLogger) *Runtime {
	return &Runtime{Log: log, Hub: hub, CAS: store, Registry: NewRegistry(), Zlog: xlog.Safe(logger)}
}

// HostEnv builds a fresh child environment carrying the host bindings
// spec.md §9 requires every processor closure gets: `.append`, `.cas`,
// plus whatever `with_env` passthrough the registration declared. handlerID,
// when non-empty, is stamped into every frame this closure appends so
// Actor.run can exclude an actor's own output from its own input stream
// (spec.md §9).
func (rt *Runtime) HostEnv(contextID frame.ID, handlerID string, withEnv map[string]interface{}) *scm.Env {
	vars := scm.Vars{}
	vars["append"] = func(a ...scm.Scmer) scm.Scmer {
		if len(a) == 0 {
			panic("append requires at least a topic")
		}
		topic := scm.String(a[0])
		opts := framelog.AppendOptions{ContextID: contextID}
		if handlerID != "" {
			opts.Meta = map[string]interface{}{"handler_id": handlerID}
		}
		if len(a) > 1 {
			if b, ok := a[1].(string); ok {
				hash, err := rt.CAS.Put([]byte(b))
				if err != nil {
					panic(err)
				}
				opts.Hash = hash
			}
		}
		f, err := rt.Log.Append(topic, opts)
		if err != nil {
			panic(err)
		}
		return encodeFrame(f)
	}
	vars["cas"] = func(a ...scm.Scmer) scm.Scmer {
		if len(a) != 1 {
			panic("cas requires exactly one hash argument")
		}
		b, err := rt.CAS.Get(scm.String(a[0]))
		if err != nil {
			panic(err)
		}
		return string(b)
	}
	for k, v := range withEnv {
		vars[Symbol(k)] = v
	}
	return &scm.Env{Vars: vars, Outer: &scm.Globalenv}
}

// Symbol is a tiny adapter so host-provided with_env keys (plain Go
// strings from JSON config) become scm.Symbol map keys without every
// call site importing scm directly for this one conversion.
func Symbol(s string) scm.Symbol { return scm.Symbol(s) }

func encodeFrame(f frame.Frame) scm.Scmer {
	out := []scm.Scmer{
		scm.Symbol("id"), string(f.ID),
		scm.Symbol("topic"), f.Topic,
		scm.Symbol("context_id"), string(f.ContextID),
	}
	if f.Hash != "" {
		out = append(out, scm.Symbol("hash"), f.Hash)
	}
	for k, v := range f.Meta {
		out = append(out, scm.Symbol(k), v)
	}
	return out
}

// handlerIDOf returns the "handler_id" meta tag a frame was stamped with
// by HostEnv's append binding, if any.
func handlerIDOf(f frame.Frame) string {
	if f.Meta == nil {
		return ""
	}
	if v, ok := f.Meta["handler_id"].(string); ok {
		return v
	}
	return ""
}
