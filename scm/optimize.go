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

// Validate checks a freshly parsed expression before it is ever evaluated.
// typename is currently unused beyond "any" but kept so callers can later
// request a stricter shape without changing the call site.
func Validate(expr Scmer, typename string) {
	if typename == "" {
		panic("Validate: empty typename")
	}
}

// Optimize rewrites an expression before evaluation. No rewrites are
// performed yet; closures are evaluated as written.
func Optimize(expr Scmer, en *Env) Scmer {
	return expr
}

// OptimizeProcToSerialFunction turns any callable scmer value (a native
// Go function or a lambda Proc) into a plain Go function, so builtins like
// map/filter/reduce can invoke user closures without going through Eval's
// list-apply machinery on every call.
func OptimizeProcToSerialFunction(proc Scmer) func(...Scmer) Scmer {
	switch proc.(type) {
	case func(...Scmer) Scmer:
		return proc.(func(...Scmer) Scmer)
	default:
		return func(a ...Scmer) Scmer {
			return Apply(proc, a...)
		}
	}
}
