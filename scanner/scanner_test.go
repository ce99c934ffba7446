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

package scanner_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/fileingest/scanner"

	"github.com/sabouaram/fileingest/matchrule"
	"github.com/sabouaram/fileingest/model"
)

type memSink struct {
	mu      sync.Mutex
	matched []*model.FileRef
	failed  []model.Failure
}

func (m *memSink) Matched(f *model.FileRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matched = append(m.matched, f)
}
func (m *memSink) Failed(f model.Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, f)
}
func (m *memSink) Progress(ProgressEvent) {}

var _ = Describe("Scanner", func() {
	var matcher *matchrule.Matcher

	BeforeEach(func() {
		var err error
		matcher, err = matchrule.New([]matchrule.RuleSpec{
			{Extensions: []string{"txt", "docx", "doc"}, NamePattern: ".*"},
		})
		Expect(err).ToNot(HaveOccurred())
	})

	It("matches plain files and ignores oversize ones", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "big.txt"), []byte("0123456789"), 0o644)).To(Succeed())

		s := New(matcher, nil, Options{Depth: -1, MaxFileSize: 5})
		sink := &memSink{}
		Expect(s.Scan([]string{dir}, sink)).To(BeNil())

		Expect(sink.matched).To(HaveLen(1))
		Expect(sink.matched[0].DisplayName).To(Equal("a.txt"))

		Expect(sink.failed).To(HaveLen(1))
		Expect(sink.failed[0].Kind).To(Equal(model.KindIgnoredLarge))
	})

	It("skips configured directories case-insensitively", func() {
		dir := GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(dir, "Node_Modules"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "Node_Modules", "a.txt"), []byte("x"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "b.txt"), []byte("y"), 0o644)).To(Succeed())

		s := New(matcher, nil, Options{Depth: -1, MaxFileSize: 1 << 20, SkipDirs: []string{"node_modules"}})
		sink := &memSink{}
		Expect(s.Scan([]string{dir}, sink)).To(BeNil())

		Expect(sink.matched).To(HaveLen(1))
		Expect(sink.matched[0].DisplayName).To(Equal("b.txt"))
	})

	It("matches files nested inside a zip archive", func() {
		dir := GinkgoT().TempDir()
		zp := filepath.Join(dir, "pkg.zip")
		f, err := os.Create(zp)
		Expect(err).ToNot(HaveOccurred())
		zw := zip.NewWriter(f)
		w, err := zw.Create("docs/report.txt")
		Expect(err).ToNot(HaveOccurred())
		_, err = w.Write([]byte("payload"))
		Expect(err).ToNot(HaveOccurred())
		Expect(zw.Close()).To(Succeed())
		Expect(f.Close()).To(Succeed())

		s := New(matcher, nil, Options{Depth: -1, MaxFileSize: 1 << 20, ScanNestedArchives: true, MaxNestedLevel: 5})
		sink := &memSink{}
		Expect(s.Scan([]string{dir}, sink)).To(BeNil())

		Expect(sink.matched).To(HaveLen(1))
		Expect(sink.matched[0].Origin).To(Equal(model.OriginArchive))
		Expect(sink.matched[0].InternalPath).To(Equal("docs/report.txt"))
	})

	It("requires at least one root", func() {
		s := New(matcher, nil, Options{})
		Expect(s.Scan(nil, &memSink{})).ToNot(BeNil())
	})
})
