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

package archivefmt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sabouaram/fileingest/model"

	liberr "github.com/sabouaram/fileingest/errors"
)

const (
	ErrorUnknownFormat CodeError = iota + liberr.MinPkgArchive
	ErrorOpen
	ErrorScratch
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgArchive) {
		panic(fmt.Errorf("error code collision with package fileingest/archivefmt"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgArchive, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorUnknownFormat:
		return "archivefmt: unrecognized archive extension"
	case ErrorOpen:
		return "archivefmt: could not open archive"
	case ErrorScratch:
		return "archivefmt: could not materialise nested archive to scratch"
	}
	return liberr.NullMessage
}

// Visitor is invoked once per file entry discovered anywhere in the
// enumeration, including inside nested archives. path is the entry's path
// within its immediate owning archive; nesting is 1 for a top-level
// archive's direct entries, 2+ for entries inside a nested archive.
type Visitor func(archivePath, entryPath string, info EntryInfo, body io.Reader, nesting int) error

// FailFunc receives a non-fatal Failure without aborting the
// enumeration.
type FailFunc func(model.Failure)

// Enumerator walks one or more archives, recursing into nested archives up
// to maxNesting, de-duplicating by canonical archive path across the run.
type Enumerator struct {
	reg        *Registry
	maxNesting int

	mu        sync.Mutex
	processed map[string]struct{}
}

// NewEnumerator builds an Enumerator using reg (DefaultRegistry() if nil).
func NewEnumerator(reg *Registry, maxNesting int) *Enumerator {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Enumerator{reg: reg, maxNesting: maxNesting, processed: make(map[string]struct{})}
}

// Enumerate opens archivePath and streams its entries to visit, recursing
// into nested archives. Each archive, identified by its
// canonical path, is enumerated at most once per Enumerator lifetime.
func (e *Enumerator) Enumerate(archivePath string, visit Visitor, fail FailFunc) {
	canon, err := filepath.Abs(archivePath)
	if err != nil {
		canon = archivePath
	}

	e.mu.Lock()
	if _, seen := e.processed[canon]; seen {
		e.mu.Unlock()
		return
	}
	e.processed[canon] = struct{}{}
	e.mu.Unlock()

	f, err := os.Open(archivePath)
	if err != nil {
		fail(model.NewFailure(model.KindArchiveOpen, archivePath, ErrorOpen.Error(err)))
		return
	}

	e.enumerate(archivePath, f, visit, fail, 1)
}

func (e *Enumerator) enumerate(archivePath string, src *os.File, visit Visitor, fail FailFunc, nesting int) {
	ext := formatExt(archivePath)
	open, ok := e.reg.Lookup(ext)
	if !ok {
		if sniffed, serr := sniff(src); serr == nil && sniffed != "" {
			if fn, found := e.reg.Lookup(sniffed); found {
				ext, open, ok = sniffed, fn, true
			}
		}
	}
	if !ok {
		_ = src.Close()
		fail(model.NewFailure(model.KindArchiveOpen, archivePath, ErrorUnknownFormat.Error(fmt.Errorf("extension %q", ext))))
		return
	}

	rdr, err := open(src)
	if err != nil {
		fail(model.NewFailure(model.KindArchiveOpen, archivePath, ErrorOpen.Error(err)))
		return
	}
	defer func() { _ = rdr.Close() }()

	_ = rdr.Walk(func(info EntryInfo, body io.Reader) error {
		if info.IsDir {
			return nil
		}

		if isArchiveName(info.Name) && e.maxNesting > 0 && nesting < e.maxNesting {
			if err := e.recurse(archivePath, info, body, visit, fail, nesting); err != nil {
				fail(model.NewFailure(model.KindNestedArchive, archivePath, err))
			}
			return nil
		}

		if err := visit(archivePath, info.Name, info, body, nesting); err != nil {
			fail(model.NewFailure(model.KindArchiveEntry, archivePath, err))
		}
		return nil
	})
}

// recurse materialises a nested archive entry to a scratch temp file and
// enumerates it through the same registry, incrementing the nesting
// level.
func (e *Enumerator) recurse(parentArchive string, info EntryInfo, body io.Reader, visit Visitor, fail FailFunc, nesting int) error {
	tmp, err := os.CreateTemp("", "fileingest-nested-*"+filepath.Ext(info.Name))
	if err != nil {
		return ErrorScratch.Error(err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return ErrorScratch.Error(err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return ErrorScratch.Error(err)
	}

	nestedPath := parentArchive + "!" + info.Name
	e.enumerateNested(nestedPath, tmp, info.Name, visit, fail, nesting+1)
	return nil
}

func (e *Enumerator) enumerateNested(nestedPath string, src *os.File, name string, visit Visitor, fail FailFunc, nesting int) {
	ext := formatExt(name)
	open, ok := e.reg.Lookup(ext)
	if !ok {
		if sniffed, serr := sniff(src); serr == nil && sniffed != "" {
			if fn, found := e.reg.Lookup(sniffed); found {
				ext, open, ok = sniffed, fn, true
			}
		}
	}
	if !ok {
		fail(model.NewFailure(model.KindArchiveOpen, nestedPath, ErrorUnknownFormat.Error(fmt.Errorf("extension %q", ext))))
		return
	}

	rdr, err := open(readCloserFrom(src))
	if err != nil {
		fail(model.NewFailure(model.KindArchiveOpen, nestedPath, ErrorOpen.Error(err)))
		return
	}
	defer func() { _ = rdr.Close() }()

	_ = rdr.Walk(func(info EntryInfo, innerBody io.Reader) error {
		if info.IsDir {
			return nil
		}

		if isArchiveName(info.Name) && e.maxNesting > 0 && nesting < e.maxNesting {
			if err := e.recurse(nestedPath, info, innerBody, visit, fail, nesting); err != nil {
				fail(model.NewFailure(model.KindNestedArchive, nestedPath, err))
			}
			return nil
		}

		if err := visit(nestedPath, info.Name, info, innerBody, nesting); err != nil {
			fail(model.NewFailure(model.KindArchiveEntry, nestedPath, err))
		}
		return nil
	})
}

// noopCloser wraps an *os.File whose lifetime is owned by the caller (the
// recurse/defer above), so the format opener's Close() does not also try
// to remove it a second time.
type noopCloser struct{ *os.File }

func (noopCloser) Close() error { return nil }

func readCloserFrom(f *os.File) io.ReadCloser { return noopCloser{f} }

func isArchiveName(name string) bool {
	ext := formatExt(name)
	switch ext {
	case "zip", "tar", "tgz", "tar.gz", "tar.bz2", "tar.xz", "tar.lz4", "rar":
		return true
	}
	return false
}

func formatExt(name string) string {
	lower := strings.ToLower(name)
	for _, multi := range []string{"tar.gz", "tar.bz2", "tar.xz", "tar.lz4"} {
		if strings.HasSuffix(lower, "."+multi) {
			return multi
		}
	}
	ext := filepath.Ext(lower)
	return strings.TrimPrefix(ext, ".")
}
