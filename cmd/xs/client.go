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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// cliError carries the exit code a CLI subcommand should report, per
// spec.md §6's 0/1/2/3 exit code table.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func usageErr(format string, a ...interface{}) error {
	return &cliError{code: exitUsage, err: fmt.Errorf(format, a...)}
}

func exitCodeFor(err error) int {
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return exitIOError
}

// statusToCliError maps an HTTP response status back onto the spec's exit
// codes, mirroring transport.writeErr's forward mapping.
func statusToCliError(resp *http.Response, body []byte) error {
	msg := fmt.Errorf("%s: %s", resp.Status, bytesToString(body))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &cliError{code: exitNotFound, err: msg}
	case http.StatusBadRequest:
		return &cliError{code: exitUsage, err: msg}
	default:
		return &cliError{code: exitIOError, err: msg}
	}
}

func bytesToString(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}

// apiClient is a thin HTTP client over the transport.Server surface.
type apiClient struct {
	base string
	hc   *http.Client
}

func newClient() *apiClient {
	return &apiClient{base: addr, hc: http.DefaultClient}
}

func (c *apiClient) do(method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.base + path
	if query != nil {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, &cliError{code: exitIOError, err: err}
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &cliError{code: exitIOError, err: err}
	}
	return resp, nil
}

func (c *apiClient) doJSON(method, path string, query url.Values, body io.Reader, out interface{}) error {
	resp, err := c.do(method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return statusToCliError(resp, b)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

// streamLines calls GET path and invokes fn once per newline-delimited
// response line, for cat/export.
func (c *apiClient) streamLines(path string, query url.Values, fn func([]byte) error) error {
	resp, err := c.do(http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return statusToCliError(resp, b)
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimPrefix(scanner.Bytes(), []byte("data: "))
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
