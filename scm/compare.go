/*
Copyright (C) 2023  Carl-Philip Hänsch

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
	"reflect"
	"strings"
)

// Equal compares two scmer values for deep equality; a number a equals a
// string b when b parses to that number, every other mix of types falls
// back to reflect.DeepEqual (used by the "contains?" builtin; "equal?"
// uses reflect.DeepEqual directly).
func Equal(a, b Scmer) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv
		case string:
			return ToFloat(b) == av && bv == bv
		default:
			return reflect.DeepEqual(a, b)
		}
	case string:
		switch b.(type) {
		case string:
			return av == b.(string)
		default:
			return reflect.DeepEqual(a, b)
		}
	default:
		return reflect.DeepEqual(a, b)
	}
}

// EqualFold compares values the way a case-insensitive frame query would:
// strings match regardless of case, everything else falls back to Equal.
func EqualFold(a, b Scmer) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}
	return Equal(a, b)
}

// Less orders two scmer values for sorted index traversal. nil sorts first.
func Less(a, b Scmer) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	switch av := a.(type) {
	case float64:
		return av < ToFloat(b)
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
		return av < String(b)
	case bool:
		return !av && ToBool(b)
	default:
		return String(a) < String(b)
	}
}

func init_compare() {
	DeclareTitle("Compare")
	Declare(&Globalenv, &Declaration{
		"equal-fold?", "compares two values, treating strings case-insensitively",
		2, 2,
		[]DeclarationParameter{
			DeclarationParameter{"a", "any", "first value"},
			DeclarationParameter{"b", "any", "second value"},
		},
		func(a ...Scmer) Scmer {
			return EqualFold(a[0], a[1])
		},
	})
}
