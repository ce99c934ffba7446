/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package archivefmt implements the archive enumerator: a
// registry of archive-format readers and a lazy, recursive entry walk.
//
// Dynamic dispatch across formats is a registry (extension -> Reader
// factory), not a per-format branch tree in the caller.
package archivefmt

import (
	"io"
	"io/fs"
)

// EntryInfo describes one entry as it is streamed off a Reader.
type EntryInfo struct {
	Name  string // entry path within the archive
	Size  int64
	Mode  fs.FileMode
	IsDir bool
}

// VisitFunc is called once per file entry. body is only valid for the
// duration of the call; implementations must fully read or drain it
// before returning, since each entry stream must be consumed or drained
// before the walk advances.
type VisitFunc func(entry EntryInfo, body io.Reader) error

// Reader enumerates the entries of one archive, sequentially, in
// whatever order the underlying format naturally provides; the Scanner
// does not depend on any particular ordering.
type Reader interface {
	io.Closer
	Walk(visit VisitFunc) error
}

// OpenFunc constructs a Reader over r, which is owned by the returned
// Reader and closed by its Close.
type OpenFunc func(r io.ReadCloser) (Reader, error)

// Registry maps a lower-cased, dot-less archive extension to its opener.
// DefaultRegistry builds a new one on every call, populated with the
// formats fileingest always supports (zip, tar, tar.gz/tgz, tar.bz2, tar.xz, tar.lz4); additional
// formats (e.g. rar, via an injected external reader) can be added with
// Register.
type Registry struct {
	open map[string]OpenFunc
}

// DefaultRegistry returns a Registry pre-populated with the built-in
// formats.
func DefaultRegistry() *Registry {
	r := &Registry{open: make(map[string]OpenFunc)}
	r.Register("zip", openZip)
	r.Register("tar", openTar)
	r.Register("tgz", openTarGz)
	r.Register("tar.gz", openTarGz)
	r.Register("tar.bz2", openTarBz2)
	r.Register("tar.xz", openTarXz)
	r.Register("tar.lz4", openTarLz4)
	return r
}

// Register adds or overrides the opener for ext (e.g. "rar" backed by an
// injected ArchiveReader implementation).
func (r *Registry) Register(ext string, fn OpenFunc) {
	r.open[ext] = fn
}

// Lookup returns the opener registered for ext, if any.
func (r *Registry) Lookup(ext string) (OpenFunc, bool) {
	fn, ok := r.open[ext]
	return fn, ok
}
