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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// newAppendCmd implements `xs append` (spec.md §6): topic + optional
// payload from stdin or --data, context_id/ttl/meta as flags.
func newAppendCmd() *cobra.Command {
	var contextID, ttl, meta, data string
	cmd := &cobra.Command{
		Use:   "append <topic>",
		Short: "append a frame to a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body io.Reader
			if data != "" {
				body = bytes.NewReader([]byte(data))
			} else if fi, _ := os.Stdin.Stat(); fi != nil && (fi.Mode()&os.ModeCharDevice) == 0 {
				body = os.Stdin
			}
			q := url.Values{"topic": {args[0]}}
			if contextID != "" {
				q.Set("context_id", contextID)
			}
			if ttl != "" {
				q.Set("ttl", ttl)
			}
			if meta != "" {
				q.Set("meta", meta)
			}
			var out map[string]interface{}
			if err := newClient().doJSON("POST", "/frames", q, body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&contextID, "context-id", "", "context id")
	cmd.Flags().StringVar(&ttl, "ttl", "", "forever|ephemeral|time:<dur>|head:<n>")
	cmd.Flags().StringVar(&meta, "meta", "", "JSON-encoded metadata object")
	cmd.Flags().StringVar(&data, "data", "", "payload (reads stdin if omitted)")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "fetch a frame record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := newClient().doJSON("GET", "/frames/"+args[0], nil, nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "remove a frame by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().doJSON("DELETE", "/frames/"+args[0], nil, nil, nil)
		},
	}
}

func newHeadCmd() *cobra.Command {
	var contextID string
	var all bool
	var follow bool
	cmd := &cobra.Command{
		Use:   "head <topic>",
		Short: "fetch the latest frame matching a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"topic": {args[0]}}
			if contextID != "" {
				q.Set("context_id", contextID)
			}
			if all {
				q.Set("all", "true")
			}
			if follow {
				q.Set("follow", "true")
			}
			var out map[string]interface{}
			if err := newClient().doJSON("GET", "/head", q, nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&contextID, "context-id", "", "context id")
	cmd.Flags().BoolVar(&all, "all", false, "search across all contexts")
	cmd.Flags().BoolVar(&follow, "follow", false, "block until a matching frame is appended")
	return cmd
}

// newCatCmd implements `xs cat`: the subscription query parameters from
// spec.md §6, including the deprecated tail/last-id aliases.
func newCatCmd() *cobra.Command {
	var (
		fromID, contextID, topic, lastID string
		fromLatest, fromBeginning, follow, all, tail bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "stream frame records",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if topic != "" {
				q.Set("topic", topic)
			}
			if contextID != "" {
				q.Set("context-id", contextID)
			}
			if all {
				q.Set("all", "true")
			}
			if follow {
				q.Set("follow", "true")
			}
			if fromLatest {
				q.Set("from-latest", "true")
			}
			if tail {
				q.Set("tail", "true")
			}
			if fromBeginning {
				q.Set("from-beginning", "true")
			}
			if fromID != "" {
				q.Set("from-id", fromID)
			}
			if lastID != "" {
				q.Set("last-id", lastID)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			return newClient().streamLines("/cat", q, func(line []byte) error {
				_, err := os.Stdout.Write(append(line, '\n'))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&fromID, "from-id", "", "start strictly after this frame id")
	cmd.Flags().StringVar(&lastID, "last-id", "", "deprecated alias for --from-id")
	cmd.Flags().BoolVar(&fromLatest, "from-latest", false, "start from the current tail")
	cmd.Flags().BoolVar(&tail, "tail", false, "deprecated alias for --from-latest")
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start from the first frame")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep streaming new frames")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many frames")
	cmd.Flags().StringVar(&topic, "topic", "", "topic or topic.* pattern")
	cmd.Flags().StringVar(&contextID, "context-id", "", "context id")
	cmd.Flags().BoolVar(&all, "all", false, "include every context")
	return cmd
}

func newCasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cas <hash>",
		Short: "fetch CAS bytes by hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().do("GET", "/cas/"+args[0], nil, nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				b, _ := io.ReadAll(resp.Body)
				return statusToCliError(resp, b)
			}
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
}

func newCasPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cas-post",
		Short: "store stdin in CAS, print its hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().do("POST", "/cas", nil, os.Stdin)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			if resp.StatusCode >= 300 {
				return statusToCliError(resp, b)
			}
			fmt.Println(string(b))
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "restore newline-delimited frame records from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().do("POST", "/import", nil, os.Stdin)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			if resp.StatusCode >= 300 {
				return statusToCliError(resp, b)
			}
			fmt.Println(string(b), "frames imported")
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var topic, contextID string
	var all bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "dump newline-delimited frame records to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if topic != "" {
				q.Set("topic", topic)
			}
			if contextID != "" {
				q.Set("context_id", contextID)
			}
			if all {
				q.Set("all", "true")
			}
			return newClient().streamLines("/export", q, func(line []byte) error {
				_, err := os.Stdout.Write(append(line, '\n'))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic or topic.* pattern")
	cmd.Flags().StringVar(&contextID, "context-id", "", "context id")
	cmd.Flags().BoolVar(&all, "all", false, "include every context")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the store's reported version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().do("GET", "/version", nil, nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			if resp.StatusCode >= 300 {
				return statusToCliError(resp, b)
			}
			fmt.Println(string(b))
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	return json.NewEncoder(os.Stdout).Encode(v)
}
