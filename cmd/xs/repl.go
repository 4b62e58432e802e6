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

package main

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/launix-de/memcp/internal/frame"
	"github.com/launix-de/memcp/internal/processor"
	"github.com/launix-de/memcp/internal/xsconfig"
	"github.com/launix-de/memcp/scm"
)

const (
	replPrompt     = "\033[32mxs>\033[0m "
	replContPrompt = "\033[32m...\033[0m "
	replResult     = "\033[31m=\033[0m "
)

func newReplCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "open a scripting console against an embedded store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := xsconfig.Load(configPath)
			if err != nil {
				return &cliError{code: exitUsage, err: err}
			}
			st, err := newStore(cfg)
			if err != nil {
				return &cliError{code: exitIOError, err: err}
			}
			defer st.Close()
			st.reap.Start()
			runRepl(st.proc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a JSON config file")
	return cmd
}

// runRepl drives an interactive scm console bound to rt's host
// environment, so `.append`/`.cas` calls read and write the same store a
// `serve` process would.
func runRepl(rt *processor.Runtime) {
	en := rt.HostEnv(frame.ID(""), "", nil)

	l, err := readline.NewEx(&readline.Config{
		Prompt:            replPrompt,
		HistoryFile:       ".xs-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	oldline := ""
	for {
		line, err := l.Readline()
		line = oldline + line
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					if s, ok := r.(string); ok && strings.HasSuffix(s, "expecting matching )") {
						oldline = line + "\n"
						l.SetPrompt(replContPrompt)
						return
					}
					fmt.Println("panic:", r, string(debug.Stack()))
					oldline = ""
					l.SetPrompt(replPrompt)
				}
			}()
			code := scm.Read("repl", line)
			scm.Validate(code, "any")
			code = scm.Optimize(code, en)
			result := scm.Eval(code, en)
			fmt.Print(replResult)
			fmt.Println(scm.Write(result))
			oldline = ""
			l.SetPrompt(replPrompt)
		}()
	}
}
