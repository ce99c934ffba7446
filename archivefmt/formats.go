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
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// tarReader adapts archive/tar to the Reader interface; used directly for
// .tar and, layered over a decompressor, for .tgz/.tar.bz2/.tar.xz/.tar.lz4.
type tarReader struct {
	src io.ReadCloser
	tr  *tar.Reader
}

func openTar(r io.ReadCloser) (Reader, error) {
	return &tarReader{src: r, tr: tar.NewReader(r)}, nil
}

func openTarGz(r io.ReadCloser) (Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return &tarReader{src: r, tr: tar.NewReader(gz)}, nil
}

func openTarBz2(r io.ReadCloser) (Reader, error) {
	return &tarReader{src: r, tr: tar.NewReader(bzip2.NewReader(r))}, nil
}

func openTarXz(r io.ReadCloser) (Reader, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return &tarReader{src: r, tr: tar.NewReader(xr)}, nil
}

func openTarLz4(r io.ReadCloser) (Reader, error) {
	return &tarReader{src: r, tr: tar.NewReader(lz4.NewReader(r))}, nil
}

func (t *tarReader) Close() error { return t.src.Close() }

func (t *tarReader) Walk(visit VisitFunc) error {
	for {
		hdr, err := t.tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		info := EntryInfo{
			Name:  hdr.Name,
			Size:  hdr.Size,
			Mode:  hdr.FileInfo().Mode(),
			IsDir: hdr.Typeflag == tar.TypeDir,
		}

		if err := visit(info, t.tr); err != nil {
			return err
		}
		// drain any unread bytes before the next iteration.
		_, _ = io.Copy(io.Discard, t.tr)
	}
}

// zipReader adapts archive/zip, which requires io.ReaderAt; the archive is
// therefore materialised to a temp file first when the source isn't
// already seekable (e.g. a nested archive extracted in-memory).
type zipReader struct {
	zr   *zip.Reader
	tmp  *os.File
	orig io.ReadCloser
}

func openZip(r io.ReadCloser) (Reader, error) {
	ra, size, cleanup, err := toReaderAt(r)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		cleanup()
		return nil, err
	}

	tmp, _ := ra.(*os.File)
	if f, ok := r.(*os.File); ok && f == tmp {
		tmp = nil
	}
	return &zipReader{zr: zr, tmp: tmp, orig: r}, nil
}

func (z *zipReader) Close() error {
	if z.tmp != nil {
		name := z.tmp.Name()
		_ = z.tmp.Close()
		_ = os.Remove(name)
	}
	return z.orig.Close()
}

func (z *zipReader) Walk(visit VisitFunc) error {
	for _, f := range z.zr.File {
		info := EntryInfo{
			Name:  f.Name,
			Size:  int64(f.UncompressedSize64),
			Mode:  f.Mode(),
			IsDir: f.Mode().IsDir(),
		}

		if info.IsDir {
			if err := visit(info, bytes.NewReader(nil)); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = visit(info, rc)
		_, _ = io.Copy(io.Discard, rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// toReaderAt returns an io.ReaderAt over r, spilling to a scratch temp
// file when r does not already implement it.
func toReaderAt(r io.ReadCloser) (io.ReaderAt, int64, func(), error) {
	if f, ok := r.(*os.File); ok {
		if st, err := f.Stat(); err == nil {
			return f, st.Size(), func() {}, nil
		}
	}

	tmp, err := os.CreateTemp("", "fileingest-zip-*")
	if err != nil {
		return nil, 0, func() {}, err
	}

	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, 0, func() {}, err
	}

	return tmp, size, func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}, nil
}
