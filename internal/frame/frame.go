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

// Package frame defines the Frame type: the atomic, immutable unit of the
// cross.stream log.
package frame

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
)

// ID is lexicographically sortable and embeds a microsecond timestamp plus
// a per-process sequence counter, so string comparison equals id comparison.
type ID string

// Zero is the reserved system/default context id.
const Zero ID = "0"

// TTLKind enumerates the four retention policies a frame may carry.
type TTLKind int

const (
	Forever TTLKind = iota
	Ephemeral
	Time
	Head
)

type TTL struct {
	Kind   TTLKind
	Millis int64 // meaningful for Time
	Head   int   // meaningful for Head
}

func (t TTL) String() string {
	switch t.Kind {
	case Ephemeral:
		return "ephemeral"
	case Time:
		return fmt.Sprintf("time:%d", t.Millis)
	case Head:
		return fmt.Sprintf("head:%d", t.Head)
	default:
		return "forever"
	}
}

// Frame is the immutable unit appended to the log.
type Frame struct {
	ID        ID                     `json:"id"`
	Topic     string                 `json:"topic"`
	ContextID ID                     `json:"context_id"`
	Hash      string                 `json:"hash,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	TTL       TTL                    `json:"ttl"`
}

var topicPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]{0,254}$`)

// ValidTopic reports whether topic satisfies spec §3: non-empty, dotted
// hierarchy, `[A-Za-z0-9_.-]`, must start with `[A-Za-z_]`, max 255 bytes.
func ValidTopic(topic string) bool {
	return topicPattern.MatchString(topic)
}

// ParseTTL parses a `--ttl` flag/config value: "forever", "ephemeral",
// "time:<duration>" (duration in Go syntax, e.g. "10m", "500ms" — rendered
// back with units.HumanDuration for logs/CLI help), or "head:<n>".
func ParseTTL(s string) (TTL, error) {
	switch {
	case s == "" || s == "forever":
		return TTL{Kind: Forever}, nil
	case s == "ephemeral":
		return TTL{Kind: Ephemeral}, nil
	case strings.HasPrefix(s, "time:"):
		d, err := time.ParseDuration(strings.TrimPrefix(s, "time:"))
		if err != nil {
			return TTL{}, fmt.Errorf("invalid ttl %q: %w", s, err)
		}
		return TTL{Kind: Time, Millis: d.Milliseconds()}, nil
	case strings.HasPrefix(s, "head:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "head:"))
		if err != nil || n <= 0 {
			return TTL{}, fmt.Errorf("invalid ttl %q: head count must be a positive integer", s)
		}
		return TTL{Kind: Head, Head: n}, nil
	default:
		return TTL{}, fmt.Errorf("invalid ttl %q: expected forever, ephemeral, time:<duration>, or head:<n>", s)
	}
}

// HumanTTL renders t the way CLI help and log lines display it, using
// units.HumanDuration for the time: case instead of a raw millisecond count.
func HumanTTL(t TTL) string {
	if t.Kind == Time {
		return "time:" + units.HumanDuration(time.Duration(t.Millis)*time.Millisecond)
	}
	return t.String()
}

// TopicPrefixes returns every hierarchy prefix of topic plus the topic
// itself, e.g. "a.b.c" -> ["a", "a.b", "a.b.c"], for secondary-index fan-out.
func TopicPrefixes(topic string) []string {
	prefixes := make([]string, 0, 4)
	for i := 0; i < len(topic); i++ {
		if topic[i] == '.' {
			prefixes = append(prefixes, topic[:i])
		}
	}
	prefixes = append(prefixes, topic)
	return prefixes
}
