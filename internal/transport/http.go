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

// Package transport is the client-facing API surface (spec.md §6): an
// HTTP/1.1 listener exposing append, cat, get, head, remove, cas,
// cas-post, import, export, version, plus a WebSocket upgrade of cat for
// duplex streaming, the same role scm/network.go played for the teacher.
package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/launix-de/memcp/internal/broadcast"
	"github.com/launix-de/memcp/internal/cas"
	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/framelog"
	"github.com/launix-de/memcp/internal/subscribe"
	"github.com/launix-de/memcp/internal/xlog"
	"github.com/launix-de/memcp/internal/xserr"
)

// Version is the daemon's reported protocol/build version.
const Version = "xs/0.1"

// Server wires the store components to net/http handlers.
type Server struct {
	Log *framelog.Log
	Hub *broadcast.Hub
	CAS *cas.Store
	log *zap.SugaredLogger

	upgrader websocket.Upgrader
}

// New builds a Server; logger may be nil.
func New(log *framelog.Log, hub *broadcast.Hub, store *cas.Store, logger *zap.SugaredLogger) *Server {
	return &Server{
		Log: log,
		Hub: hub,
		CAS: store,
		log: xlog.Safe(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the routed mux, using Go 1.22+ ServeMux method+wildcard
// patterns instead of pulling in a router library the pack never wires.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /frames", s.handleAppend)
	mux.HandleFunc("GET /frames/{id}", s.handleGet)
	mux.HandleFunc("DELETE /frames/{id}", s.handleRemove)
	mux.HandleFunc("GET /cat", s.handleCat)
	mux.HandleFunc("GET /head", s.handleHead)
	mux.HandleFunc("GET /cas/{hash}", s.handleCasGet)
	mux.HandleFunc("POST /cas", s.handleCasPost)
	mux.HandleFunc("POST /import", s.handleImport)
	mux.HandleFunc("GET /export", s.handleExport)
	mux.HandleFunc("GET /version", s.handleVersion)
	return s.logged(mux)
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugw("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

// writeErr maps the xserr taxonomy (spec.md §7) onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, xserr.NotFound):
		status = http.StatusNotFound
	case errors.Is(err, xserr.InvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, xserr.Corrupted):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, xserr.Lagged):
		status = http.StatusGone
	case errors.Is(err, xserr.Unavailable):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, Version)
}

// handleAppend implements `append` (spec.md §6): topic + optional payload
// body + context_id/ttl/meta query params. meta is parsed as a plain JSON
// object straight from the query string; it is not base64-decoded.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	opts := framelog.AppendOptions{ContextID: frame.ID(r.URL.Query().Get("context_id"))}
	if ttl := r.URL.Query().Get("ttl"); ttl != "" {
		t, err := frame.ParseTTL(ttl)
		if err != nil {
			writeErr(w, fmt.Errorf("%w: %v", xserr.InvalidArgument, err))
			return
		}
		opts.TTL = t
	}
	if meta := r.URL.Query().Get("meta"); meta != "" {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(meta), &m); err != nil {
			writeErr(w, fmt.Errorf("%w: bad meta: %v", xserr.InvalidArgument, err))
			return
		}
		opts.Meta = m
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, fmt.Errorf("%w: reading body: %v", xserr.InvalidArgument, err))
		return
	}
	if len(body) > 0 {
		hash, err := s.CAS.Put(body)
		if err != nil {
			writeErr(w, err)
			return
		}
		opts.Hash = hash
	}

	f, err := s.Log.Append(topic, opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, f)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := frame.ID(r.PathValue("id"))
	f, err := s.Log.Get(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, f)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := frame.ID(r.PathValue("id"))
	if err := s.Log.Remove(id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHead implements `head`: latest frame matching topic/context,
// optionally long-polling via `follow` the way `cat --from_latest --limit
// 1 --follow` would, but returning a single record instead of a stream.
func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := framelog.ScanOptions{
		TopicPattern: q.Get("topic"),
		ContextID:    frame.ID(q.Get("context_id")),
		AllContexts:  q.Get("all") == "true",
	}
	frames, err := s.Log.Scan(opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(frames) > 0 {
		writeJSON(w, frames[len(frames)-1])
		return
	}
	if q.Get("follow") != "true" {
		writeErr(w, fmt.Errorf("%w: no frame for topic %q", xserr.NotFound, opts.TopicPattern))
		return
	}

	ctx := r.Context()
	sub := subscribe.Open(ctx, s.Log, s.Hub, subscribe.Options{
		Follow: true, FromLatest: true, Limit: 1,
		TopicPattern: opts.TopicPattern, ContextID: opts.ContextID, AllContexts: opts.AllContexts,
	})
	select {
	case f, ok := <-sub.Frames():
		if !ok {
			writeErr(w, fmt.Errorf("%w: no frame for topic %q", xserr.NotFound, opts.TopicPattern))
			return
		}
		writeJSON(w, f)
	case <-ctx.Done():
		writeErr(w, fmt.Errorf("%w: client disconnected", xserr.Unavailable))
	}
}

func (s *Server) handleCasGet(w http.ResponseWriter, r *http.Request) {
	b, err := s.CAS.Get(r.PathValue("hash"))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(b)
}

func (s *Server) handleCasPost(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, fmt.Errorf("%w: reading body: %v", xserr.InvalidArgument, err))
		return
	}
	hash, err := s.CAS.Put(buf)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, hash)
}

// handleImport implements `import`: a newline-delimited sequence of frame
// records, appended in order for backup restore. Each record keeps its
// topic, context, hash, meta and ttl, but is appended under a freshly
// assigned id; the caller-supplied id is not preserved.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f frame.Frame
		if err := json.Unmarshal(line, &f); err != nil {
			writeErr(w, fmt.Errorf("%w: import line %d: %v", xserr.InvalidArgument, count+1, err))
			return
		}
		if _, err := s.Log.Append(f.Topic, framelog.AppendOptions{
			ContextID: f.ContextID, Hash: f.Hash, Meta: f.Meta, TTL: f.TTL,
		}); err != nil {
			writeErr(w, err)
			return
		}
		count++
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "%d", count)
}

// handleExport implements `export`: the inverse of import, one
// newline-delimited frame record per line, in id order.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	frames, err := s.Log.Scan(framelog.ScanOptions{
		TopicPattern: q.Get("topic"),
		ContextID:    frame.ID(q.Get("context_id")),
		AllContexts:  q.Get("all") == "true",
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, f := range frames {
		if err := enc.Encode(f); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// parseSubscribeOptions maps spec.md §6's query parameters, including the
// deprecated `tail`/`last-id` aliases, onto subscribe.Options.
func parseSubscribeOptions(q map[string][]string) (subscribe.Options, error) {
	get := func(k string) string {
		if v, ok := q[k]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	opts := subscribe.Options{
		TopicPattern: get("topic"),
		ContextID:    frame.ID(get("context-id")),
		AllContexts:  get("all") == "true",
		Follow:       get("follow") == "true",
	}
	if get("from-beginning") == "true" {
		opts.FromBeginning = true
	}
	if v := get("from-id"); v != "" {
		opts.FromID = frame.ID(v)
	}
	if v := get("last-id"); v != "" { // deprecated alias
		opts.FromID = frame.ID(v)
	}
	if get("from-latest") == "true" || get("tail") == "true" { // tail is a deprecated alias
		opts.FromLatest = true
	}
	if v := get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%w: bad limit %q", xserr.InvalidArgument, v)
		}
		opts.Limit = n
	}
	return opts, nil
}

// handleCat implements `cat`: newline-delimited JSON by default, or
// Server-Sent Events when the client asks for text/event-stream, per
// spec.md §6. A WebSocket upgrade of the same subscription is offered at
// the same path for duplex transport (see ws.go).
func (s *Server) handleCat(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveCatWS(w, r)
		return
	}

	opts, err := parseSubscribeOptions(r.URL.Query())
	if err != nil {
		writeErr(w, err)
		return
	}

	sse := r.Header.Get("Accept") == "text/event-stream"
	flusher, canFlush := w.(http.Flusher)
	if sse {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.Header().Set("Cache-Control", "no-cache")

	ctx := r.Context()
	sub := subscribe.Open(ctx, s.Log, s.Hub, opts)
	enc := json.NewEncoder(w)
	for f := range sub.Frames() {
		if sse {
			fmt.Fprint(w, "data: ")
		}
		if err := enc.Encode(f); err != nil {
			break
		}
		if sse {
			fmt.Fprint(w, "\n")
		}
		if canFlush {
			flusher.Flush()
		}
	}
	if err := sub.Err(); err != nil && !errors.Is(err, xserr.Lagged) {
		s.log.Warnw("cat stream ended with error", "error", err)
	}
}
