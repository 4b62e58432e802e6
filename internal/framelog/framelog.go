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

// Package framelog is the durable ordered index of frame metadata: a
// bbolt-backed primary store plus topic-hierarchy and context secondary
// indices, with topic-scoped head:N trimming and ephemeral bypass.
package framelog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/iolimit"
	"github.com/launix-de/memcp/internal/xlog"
	"github.com/launix-de/memcp/internal/xserr"
)

var (
	bucketFrames   = []byte("frames")
	bucketTopicIdx = []byte("topic_idx")
	bucketCtxIdx   = []byte("ctx_idx")
	bucketMeta     = []byte("meta")
)

const generationKey = "generation"
const currentGeneration = "1"

// Publisher receives every frame as it commits, persistent or ephemeral.
// The Log never imports internal/broadcast directly (avoiding an import
// cycle with the subscription engine); the daemon wires a Hub in as this.
type Publisher interface {
	Publish(f frame.Frame)
}

type nopPublisher struct{}

func (nopPublisher) Publish(frame.Frame) {}

// Log is the Frame Log component (spec.md §4.1).
type Log struct {
	db  *bbolt.DB
	gen *frame.Generator
	io  *iolimit.Semaphore
	pub Publisher
	log *zap.SugaredLogger
	mu  sync.Mutex // serializes append, satisfying the single-writer contract
}

// Open opens (creating if absent) the bbolt file at path, rebuilding the
// topic index if its stored generation number is stale. logger may be nil.
func Open(path string, pub Publisher, logger *zap.SugaredLogger) (*Log, error) {
	db, err := bbolt.Open(path, 0640, nil)
	if err != nil {
		return nil, fmt.Errorf("framelog: open %s: %w", path, err)
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	l := &Log{db: db, gen: &frame.Generator{}, io: iolimit.New(0), pub: pub, log: xlog.Safe(logger)}
	if err := l.init(); err != nil {
		db.Close()
		return nil, err
	}
	l.log.Infow("framelog opened", "path", path)
	return l, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) init() error {
	stale := false
	err := l.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketFrames, bucketTopicIdx, bucketCtxIdx, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		gen := meta.Get([]byte(generationKey))
		if string(gen) != currentGeneration {
			stale = true
			meta.Put([]byte(generationKey), []byte(currentGeneration))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if stale {
		return l.rebuildTopicIndex()
	}
	return nil
}

// rebuildTopicIndex re-derives topic_idx and ctx_idx from the primary
// frames bucket, used once after a generation bump (format change) or a
// detected inconsistency.
func (l *Log) rebuildTopicIndex() error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		topicIdx := tx.Bucket(bucketTopicIdx)
		ctxIdx := tx.Bucket(bucketCtxIdx)
		c := topicIdx.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			topicIdx.Delete(k)
		}
		c = ctxIdx.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ctxIdx.Delete(k)
		}
		frames := tx.Bucket(bucketFrames)
		return frames.ForEach(func(k, v []byte) error {
			var f frame.Frame
			if err := json.Unmarshal(v, &f); err != nil {
				return nil // skip corrupt record; surfaced on read, not here
			}
			return l.indexFrame(topicIdx, ctxIdx, f)
		})
	})
}

func (l *Log) indexFrame(topicIdx, ctxIdx *bbolt.Bucket, f frame.Frame) error {
	for _, prefix := range frame.TopicPrefixes(f.Topic) {
		key := []byte(prefix + "\x00" + string(f.ID))
		if err := topicIdx.Put(key, nil); err != nil {
			return err
		}
	}
	key := []byte(string(f.ContextID) + "\x00" + string(f.ID))
	return ctxIdx.Put(key, nil)
}

// AppendOptions carries everything append() needs besides topic.
type AppendOptions struct {
	ContextID frame.ID
	Hash      string
	Meta      map[string]interface{}
	TTL       frame.TTL
}

// Append assigns the next id, writes the primary record and every
// secondary index entry in one bbolt transaction, then publishes to the
// hub. Ephemeral frames skip the persistent write but still publish.
func (l *Log) Append(topic string, opts AppendOptions) (frame.Frame, error) {
	if !frame.ValidTopic(topic) {
		return frame.Frame{}, fmt.Errorf("%w: invalid topic %q", xserr.InvalidArgument, topic)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.gen.Next()
	ctxID := opts.ContextID
	if ctxID == "" {
		ctxID = frame.Zero
	}
	f := frame.Frame{ID: id, Topic: topic, ContextID: ctxID, Hash: opts.Hash, Meta: opts.Meta, TTL: opts.TTL}

	if opts.TTL.Kind == frame.Ephemeral {
		l.pub.Publish(f)
		return f, nil
	}

	release := l.io.Acquire()
	err := l.db.Update(func(tx *bbolt.Tx) error {
		enc, err := json.Marshal(f)
		if err != nil {
			return err
		}
		frames := tx.Bucket(bucketFrames)
		if err := frames.Put([]byte(id), enc); err != nil {
			return err
		}
		return l.indexFrame(tx.Bucket(bucketTopicIdx), tx.Bucket(bucketCtxIdx), f)
	})
	release()
	if err != nil {
		l.log.Errorw("append failed", "topic", topic, "context_id", string(ctxID), "error", err)
		return frame.Frame{}, fmt.Errorf("framelog: append: %w", err)
	}

	if opts.TTL.Kind == frame.Head {
		l.trimHead(topic, ctxID, opts.TTL.Head)
	}

	l.log.Debugw("frame appended", "frame_id", string(id), "topic", topic, "context_id", string(ctxID))
	l.pub.Publish(f)
	return f, nil
}

// trimHead removes the oldest frames sharing (topic, contextID) beyond
// the most recent n, per spec.md §4.1.
func (l *Log) trimHead(topic string, ctxID frame.ID, n int) {
	ids, err := l.idsForTopicInContext(topic, ctxID)
	if err != nil || len(ids) <= n {
		return
	}
	toRemove := ids[:len(ids)-n]
	release := l.io.Acquire()
	defer release()
	_ = l.db.Update(func(tx *bbolt.Tx) error {
		for _, id := range toRemove {
			if err := l.removeLocked(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Log) idsForTopicInContext(topic string, ctxID frame.ID) ([]frame.ID, error) {
	var ids []frame.ID
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketTopicIdx).Cursor()
		prefix := []byte(topic + "\x00")
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			id := frame.ID(k[len(prefix):])
			f, ferr := l.getLocked(tx, id)
			if ferr == nil && f.ContextID == ctxID && f.Topic == topic {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}

// Get performs a point lookup by id.
func (l *Log) Get(id frame.ID) (frame.Frame, error) {
	var f frame.Frame
	var err error
	release := l.io.Acquire()
	defer release()
	dbErr := l.db.View(func(tx *bbolt.Tx) error {
		f, err = l.getLocked(tx, id)
		return nil
	})
	if dbErr != nil {
		return frame.Frame{}, dbErr
	}
	return f, err
}

func (l *Log) getLocked(tx *bbolt.Tx, id frame.ID) (frame.Frame, error) {
	v := tx.Bucket(bucketFrames).Get([]byte(id))
	if v == nil {
		return frame.Frame{}, fmt.Errorf("%w: frame %s", xserr.NotFound, id)
	}
	var f frame.Frame
	if err := json.Unmarshal(v, &f); err != nil {
		return frame.Frame{}, fmt.Errorf("framelog: corrupt record %s: %w", id, err)
	}
	return f, nil
}

// Remove logically deletes a frame: primary + index entries. CAS content
// referenced by its hash is left for compaction (spec.md §4.1).
func (l *Log) Remove(id frame.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	release := l.io.Acquire()
	defer release()
	return l.db.Update(func(tx *bbolt.Tx) error {
		return l.removeLocked(tx, id)
	})
}

func (l *Log) removeLocked(tx *bbolt.Tx, id frame.ID) error {
	f, err := l.getLocked(tx, id)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketFrames).Delete([]byte(id)); err != nil {
		return err
	}
	topicIdx := tx.Bucket(bucketTopicIdx)
	for _, prefix := range frame.TopicPrefixes(f.Topic) {
		if err := topicIdx.Delete([]byte(prefix + "\x00" + string(id))); err != nil {
			return err
		}
	}
	return tx.Bucket(bucketCtxIdx).Delete([]byte(string(f.ContextID) + "\x00" + string(id)))
}

// LatestID returns the highest frame id currently stored, or "" if empty.
// Used by the subscription engine to pin the historical/live cut-over point.
func (l *Log) LatestID() (frame.ID, error) {
	var latest frame.ID
	release := l.io.Acquire()
	defer release()
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketFrames).Cursor()
		k, _ := c.Last()
		if k != nil {
			latest = frame.ID(k)
		}
		return nil
	})
	return latest, err
}

// ScanOptions mirrors spec.md §4.1's scan option set, minus `follow` (the
// subscription engine layers live broadcast on top; Scan itself is
// always a finite historical pass).
type ScanOptions struct {
	FromID        frame.ID // exclusive lower bound
	FromBeginning bool
	Limit         int // 0 = unbounded
	TopicPattern  string // "", an exact topic, or "a.*"-style prefix match against the hierarchy index
	ContextID     frame.ID
	AllContexts   bool
}

// Scan returns frames in id order matching options, a single finite pass
// over the persisted log (spec.md §4.1, §4.4 step 3).
func (l *Log) Scan(opts ScanOptions) ([]frame.Frame, error) {
	release := l.io.Acquire()
	defer release()
	var out []frame.Frame
	err := l.db.View(func(tx *bbolt.Tx) error {
		ids, err := l.candidateIDs(tx, opts)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if opts.Limit > 0 && len(out) >= opts.Limit {
				break
			}
			f, err := l.getLocked(tx, id)
			if err != nil {
				continue // index pointed at a since-removed frame
			}
			if !opts.AllContexts && opts.ContextID != "" && f.ContextID != opts.ContextID {
				continue
			}
			// a pattern without "*" names one exact topic; the prefix index
			// also lists frames of its sub-topics under that key.
			if opts.TopicPattern != "" && !strings.HasSuffix(opts.TopicPattern, "*") && f.Topic != opts.TopicPattern {
				continue
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

func (l *Log) candidateIDs(tx *bbolt.Tx, opts ScanOptions) ([]frame.ID, error) {
	var ids []frame.ID
	if opts.TopicPattern != "" {
		prefix := strings.TrimSuffix(opts.TopicPattern, "*")
		prefix = strings.TrimSuffix(prefix, ".") + "."
		if !strings.HasSuffix(opts.TopicPattern, "*") {
			prefix = opts.TopicPattern + "\x00"
		}
		c := tx.Bucket(bucketTopicIdx).Cursor()
		seen := map[frame.ID]bool{}
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			parts := strings.SplitN(string(k), "\x00", 2)
			if len(parts) != 2 {
				continue
			}
			id := frame.ID(parts[1])
			if opts.FromID != "" && id <= opts.FromID {
				continue
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil
	}

	c := tx.Bucket(bucketFrames).Cursor()
	var start []byte
	if opts.FromID != "" {
		start = []byte(opts.FromID)
	}
	var k []byte
	if start != nil {
		k, _ = c.Seek(start)
		if k != nil && string(k) == string(opts.FromID) {
			k, _ = c.Next() // exclusive
		}
	} else {
		k, _ = c.First()
	}
	for ; k != nil; k, _ = c.Next() {
		ids = append(ids, frame.ID(k))
	}
	return ids, nil
}
