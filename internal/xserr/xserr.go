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

// Package xserr holds the error taxonomy surfaced to xs clients: NotFound,
// InvalidArgument, Corrupted, Lagged, Unavailable and ProcessorError.
// Callers wrap one of these sentinels with fmt.Errorf("%w: ...", xserr.NotFound)
// and check with errors.Is; the transport layer maps a wrapped sentinel to the
// matching HTTP status / CLI exit code.
package xserr

import "errors"

var (
	NotFound        = errors.New("not found")
	InvalidArgument = errors.New("invalid argument")
	Corrupted       = errors.New("corrupted")
	Lagged          = errors.New("lagged")
	Unavailable     = errors.New("unavailable")
	ProcessorError  = errors.New("processor error")
)

// Is reports whether err wraps sentinel, convenience wrapper around errors.Is
// so call sites don't need a second import.
func Is(err, sentinel error) bool {
	return errors.Is(err, sentinel)
}
