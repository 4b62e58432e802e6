/*
Copyright (C) 2023  Carl-Philip Hänsch
Copyright (C) 2013  Pieter Kelchtermans (originally licensed unter WTFPL 2.0)

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
package scm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// String renders a scmer value the way it would read back as source,
// except that top-level strings are returned unquoted.
func String(v Scmer) string {
	switch e := v.(type) {
	case nil:
		return "nil"
	case string:
		return e
	case Symbol:
		return string(e)
	case float64:
		return strconv.FormatFloat(e, 'g', -1, 64)
	case bool:
		if e {
			return "true"
		}
		return "false"
	case []Scmer:
		parts := make([]string, len(e))
		for i, item := range e {
			parts[i] = Write(item)
		}
		return "(" + strings.Join(parts, " ") + ")"
	case Proc:
		return "#<lambda>"
	case func(...Scmer) Scmer:
		return fmt.Sprintf("#<builtin %p>", e)
	default:
		return fmt.Sprint(e)
	}
}

// Write renders a scmer value as it would appear written back as source,
// quoting strings (unlike String, which leaves a top-level string bare).
func Write(v Scmer) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return String(v)
}

// WriteTo streams the written form of v to w.
func WriteTo(w io.Writer, v Scmer) {
	io.WriteString(w, Write(v))
}
