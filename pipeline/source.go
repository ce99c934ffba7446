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

package pipeline

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sabouaram/fileingest/archivefmt"
	"github.com/sabouaram/fileingest/model"
)

// errEntryFound stops a Reader.Walk early once the wanted entry has been
// buffered (archivefmt.Reader has no seek/skip primitive).
var errEntryFound = errors.New("pipeline: entry found")

// fsSource opens FileRef bytes for the packager, dispatching between a
// direct filesystem read and an in-archive re-extraction depending on
// Origin.
type fsSource struct {
	registry *archivefmt.Registry
}

func newFsSource(registry *archivefmt.Registry) fsSource {
	return fsSource{registry: registry}
}

func (s fsSource) Open(ref *model.FileRef) (io.ReadCloser, error) {
	if ref.Origin != model.OriginArchive {
		return os.Open(ref.SourcePath)
	}
	return s.openArchiveEntry(ref.ArchivePath, ref.InternalPath)
}

func (s fsSource) openArchiveEntry(archivePath, entryPath string) (io.ReadCloser, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	open, ok := s.registry.Lookup(archiveExt(archivePath))
	if !ok {
		return nil, errors.New("pipeline: no reader registered for " + archivePath)
	}

	reader, err := open(noCloseFile{f})
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	var buf bytes.Buffer
	walkErr := reader.Walk(func(entry archivefmt.EntryInfo, body io.Reader) error {
		if entry.Name != entryPath {
			return nil
		}
		if _, err := io.Copy(&buf, body); err != nil {
			return err
		}
		return errEntryFound
	})
	if walkErr != nil && walkErr != errEntryFound {
		return nil, walkErr
	}
	if buf.Len() == 0 && walkErr != errEntryFound {
		return nil, errors.New("pipeline: entry " + entryPath + " not found in " + archivePath)
	}

	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

type noCloseFile struct{ *os.File }

func (noCloseFile) Close() error { return nil }

func archiveExt(name string) string {
	lower := strings.ToLower(name)
	for _, multi := range []string{"tar.gz", "tar.bz2", "tar.xz", "tar.lz4"} {
		if strings.HasSuffix(lower, "."+multi) {
			return multi
		}
	}
	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		return lower[idx+1:]
	}
	return lower
}
