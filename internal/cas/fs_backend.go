/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

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

package cas

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/launix-de/memcp/internal/xserr"
)

// FSBackend stores each blob as a plain file under <root>/<shard>/<key>,
// sharded by the first two characters of the key's digest (the part after
// the "<alg>-" prefix) to keep any one directory from growing unbounded
// (the sharding scheme memcp's column storage used for long column names,
// generalized here to blob keys).
type FSBackend struct {
	Root string
}

func NewFSBackend(root string) *FSBackend {
	return &FSBackend{Root: root}
}

func (f *FSBackend) shard(key string) string {
	clean := filepath.Base(key)
	if i := strings.IndexByte(clean, '-'); i >= 0 {
		clean = clean[i+1:]
	}
	if len(clean) < 2 {
		return "00"
	}
	return clean[:2]
}

func (f *FSBackend) path(key string) string {
	return filepath.Join(f.Root, f.shard(key), filepath.Base(key))
}

func (f *FSBackend) Put(key string, data []byte) error {
	dir := filepath.Join(f.Root, f.shard(key))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(key))
}

func (f *FSBackend) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", xserr.NotFound, key)
		}
		return nil, err
	}
	return b, nil
}

func (f *FSBackend) Exists(key string) bool {
	_, err := os.Stat(f.path(key))
	return err == nil
}

func (f *FSBackend) Delete(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FSBackend) List() ([]string, error) {
	var keys []string
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, err
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(f.Root, shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if filepath.Ext(file.Name()) == ".tmp" {
				continue
			}
			keys = append(keys, file.Name())
		}
	}
	return keys, nil
}
