//go:build ceph

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
	"path"
	"strings"
	"sync"

	"github.com/ceph/go-ceph/rados"

	"github.com/launix-de/memcp/internal/xserr"
)

// CephConfig mirrors the teacher's CephFactory fields.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// CephBackend stores each blob as a RADOS object under <prefix>/blob/<key>,
// the same object layout the teacher's CephStorage already used for blobs.
type CephBackend struct {
	cfg CephConfig

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

func NewCephBackend(cfg CephConfig) *CephBackend {
	return &CephBackend{cfg: cfg}
}

func (c *CephBackend) ensureOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return
	}
	conn, err := rados.NewConnWithClusterAndUser(c.cfg.ClusterName, c.cfg.UserName)
	if err != nil {
		panic(err)
	}
	if c.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(c.cfg.ConfFile); err != nil {
			panic(err)
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		panic(err)
	}
	ioctx, err := conn.OpenIOContext(c.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		panic(err)
	}
	c.conn = conn
	c.ioctx = ioctx
	c.opened = true
}

func (c *CephBackend) obj(key string) string {
	return path.Join(strings.TrimSuffix(c.cfg.Prefix, "/"), "blob", key)
}

func (c *CephBackend) Put(key string, data []byte) error {
	c.ensureOpen()
	return c.ioctx.WriteFull(c.obj(key), data)
}

func (c *CephBackend) Get(key string) ([]byte, error) {
	c.ensureOpen()
	obj := c.obj(key)
	stat, err := c.ioctx.Stat(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", xserr.NotFound, key, err)
	}
	data := make([]byte, stat.Size)
	n, err := c.ioctx.Read(obj, data, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", xserr.NotFound, key, err)
	}
	return data[:n], nil
}

func (c *CephBackend) Exists(key string) bool {
	c.ensureOpen()
	_, err := c.ioctx.Stat(c.obj(key))
	return err == nil
}

func (c *CephBackend) Delete(key string) error {
	c.ensureOpen()
	return c.ioctx.Delete(c.obj(key))
}

func (c *CephBackend) List() ([]string, error) {
	c.ensureOpen()
	prefix := path.Join(strings.TrimSuffix(c.cfg.Prefix, "/"), "blob") + "/"
	var keys []string
	iter, err := c.ioctx.Iter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	for iter.Next() {
		name := iter.Value()
		if strings.HasPrefix(name, prefix) {
			keys = append(keys, strings.TrimPrefix(name, prefix))
		}
	}
	return keys, iter.Err()
}
