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

package archivefmt_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/fileingest/archivefmt"
	"github.com/sabouaram/fileingest/model"
)

func writeZip(t GinkgoTInterface, dir, name string, files map[string]string) string {
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	Expect(err).ToNot(HaveOccurred())
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for n, content := range files {
		w, err := zw.Create(n)
		Expect(err).ToNot(HaveOccurred())
		_, err = w.Write([]byte(content))
		Expect(err).ToNot(HaveOccurred())
	}
	Expect(zw.Close()).ToNot(HaveOccurred())
	return p
}

var _ = Describe("Enumerator", func() {
	It("visits every file entry in a zip archive", func() {
		dir := GinkgoT().TempDir()
		p := writeZip(GinkgoT(), dir, "pkg.zip", map[string]string{
			"docs/MeiTuan-zip.docx": "hello",
			"other/ignored.log":     "world",
		})

		e := NewEnumerator(nil, 5)
		seen := map[string]string{}
		var fails []model.Failure

		e.Enumerate(p, func(archivePath, entryPath string, info EntryInfo, body io.Reader, nesting int) error {
			b, _ := io.ReadAll(body)
			seen[entryPath] = string(b)
			return nil
		}, func(f model.Failure) { fails = append(fails, f) })

		Expect(fails).To(BeEmpty())
		Expect(seen).To(HaveKeyWithValue("docs/MeiTuan-zip.docx", "hello"))
		Expect(seen).To(HaveKeyWithValue("other/ignored.log", "world"))
	})

	It("enumerates a given archive path at most once", func() {
		dir := GinkgoT().TempDir()
		p := writeZip(GinkgoT(), dir, "pkg.zip", map[string]string{"a.txt": "x"})

		e := NewEnumerator(nil, 5)
		count := 0
		e.Enumerate(p, func(string, string, EntryInfo, io.Reader, int) error { count++; return nil }, func(model.Failure) {})
		e.Enumerate(p, func(string, string, EntryInfo, io.Reader, int) error { count++; return nil }, func(model.Failure) {})

		Expect(count).To(Equal(1))
	})

	It("records archiveOpen on an unrecognized extension and does not panic", func() {
		dir := GinkgoT().TempDir()
		p := filepath.Join(dir, "mystery.bin")
		Expect(os.WriteFile(p, []byte("not an archive"), 0o644)).To(Succeed())

		e := NewEnumerator(nil, 5)
		var fails []model.Failure
		e.Enumerate(p, func(string, string, EntryInfo, io.Reader, int) error { return nil }, func(f model.Failure) { fails = append(fails, f) })

		Expect(fails).To(HaveLen(1))
		Expect(fails[0].Kind).To(Equal(model.KindArchiveOpen))
	})

	It("falls back to content sniffing when a zip carries a generic extension", func() {
		dir := GinkgoT().TempDir()
		p := writeZip(GinkgoT(), dir, "payload.bin", map[string]string{"a.txt": "sniffed"})

		e := NewEnumerator(nil, 5)
		seen := map[string]string{}
		var fails []model.Failure

		e.Enumerate(p, func(archivePath, entryPath string, info EntryInfo, body io.Reader, nesting int) error {
			b, _ := io.ReadAll(body)
			seen[entryPath] = string(b)
			return nil
		}, func(f model.Failure) { fails = append(fails, f) })

		Expect(fails).To(BeEmpty())
		Expect(seen).To(HaveKeyWithValue("a.txt", "sniffed"))
	})
})
