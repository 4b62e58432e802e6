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

package frame

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator hands out strictly increasing, lexicographically sortable ids
// of the form <16-hex-micros><8-hex-seq>. A single Generator must be shared
// by every writer in the daemon (the frame log is single-writer, §5).
type Generator struct {
	lastMicros int64
	seq        uint32
}

// Next returns the next id, guaranteeing strict monotonicity even when
// called faster than the microsecond clock advances.
func (g *Generator) Next() ID {
	now := time.Now().UnixMicro()
	last := atomic.LoadInt64(&g.lastMicros)
	if now <= last {
		now = last
		n := atomic.AddUint32(&g.seq, 1)
		return ID(fmt.Sprintf("%016x%08x", now, n))
	}
	atomic.StoreInt64(&g.lastMicros, now)
	atomic.StoreUint32(&g.seq, 0)
	return ID(fmt.Sprintf("%016x%08x", now, 0))
}

// NewContextID mints a fresh opaque context identifier. Grounded on the
// teacher's low-entropy-safe uuid generator (storage/fast_uuid.go),
// swapped here for google/uuid's own v4 generator, which the teacher
// already depends on and which does not need the startup-stall workaround
// fast_uuid.go existed for (contexts are created far less often than the
// SQL engine's per-row uuids were).
func NewContextID() ID {
	return ID(uuid.NewString())
}
