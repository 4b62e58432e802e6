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

// cross.stream (xs): a local-first, append-only, content-addressed event
// store with real-time subscriptions and pluggable in-process processors.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exit codes per spec.md §6: 0 success, 1 I/O/protocol error, 2 usage error, 3 not found.
const (
	exitOK       = 0
	exitIOError  = 1
	exitUsage    = 2
	exitNotFound = 3
)

var addr string

func main() {
	root := &cobra.Command{
		Use:           "xs",
		Short:         "cross.stream: a local-first, content-addressed event store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe("")
		},
	}
	root.PersistentFlags().StringVar(&addr, "addr", defaultAddr(), "store address (env XS_ADDR)")

	root.AddCommand(
		newServeCmd(),
		newReplCmd(),
		newAppendCmd(),
		newCatCmd(),
		newGetCmd(),
		newHeadCmd(),
		newRemoveCmd(),
		newCasCmd(),
		newCasPostCmd(),
		newImportCmd(),
		newExportCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xs:", err)
		os.Exit(exitCodeFor(err))
	}
}

func defaultAddr() string {
	if v := os.Getenv("XS_ADDR"); v != "" {
		return v
	}
	return "http://localhost:8089"
}
