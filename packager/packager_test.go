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

package packager_test

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/fileingest/packager"
	"github.com/sabouaram/fileingest/model"
)

type memberSource struct {
	content map[string]string
}

func (s *memberSource) Open(ref *model.FileRef) (io.ReadCloser, error) {
	content, ok := s.content[ref.SourcePath]
	if !ok {
		return nil, errors.New("no such member")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func ref(path string, size int64) *model.FileRef {
	return &model.FileRef{SourcePath: path, DisplayName: path, Size: size, Origin: model.OriginFilesystem}
}

var _ = Describe("Packager", func() {
	It("seals exactly at the maxFiles boundary, not one member later", func() {
		dir := GinkgoT().TempDir()
		src := &memberSource{content: map[string]string{"a": "1", "b": "2"}}
		p := New(Options{OutputDir: dir, Trigger: Trigger{MaxFiles: 2}, MetadataEnabled: true}, src)

		pkg, err := p.Add(ref("a", 1))
		Expect(err).To(BeNil())
		Expect(pkg).To(BeNil())

		pkg, err = p.Add(ref("b", 1))
		Expect(err).To(BeNil())
		Expect(pkg).ToNot(BeNil())
		Expect(pkg.MemberRefs).To(HaveLen(2))
		Expect(pkg.Manifest.Files).To(HaveLen(2))
		_, statErr := os.Stat(pkg.Path)
		Expect(statErr).To(BeNil())
	})

	It("resolves name collisions by appending -N before the extension", func() {
		dir := GinkgoT().TempDir()
		src := &memberSource{content: map[string]string{"/x/plan.doc": "a", "/y/plan.doc": "b", "/z/plan.doc": "c"}}
		p := New(Options{OutputDir: dir, Trigger: Trigger{MaxFiles: 3}, MetadataEnabled: true}, src)

		members := []*model.FileRef{
			{SourcePath: "/x/plan.doc", DisplayName: "plan.doc", Size: 1, Origin: model.OriginFilesystem},
			{SourcePath: "/y/plan.doc", DisplayName: "plan.doc", Size: 1, Origin: model.OriginFilesystem},
			{SourcePath: "/z/plan.doc", DisplayName: "plan.doc", Size: 1, Origin: model.OriginFilesystem},
		}
		var pkg *model.Package
		for _, m := range members {
			sealed, err := p.Add(m)
			Expect(err).To(BeNil())
			if sealed != nil {
				pkg = sealed
			}
		}
		Expect(pkg).ToNot(BeNil())

		names := map[string]bool{}
		for _, f := range pkg.Manifest.Files {
			Expect(f.OriginalName).To(Equal("plan.doc"))
			names[f.Name] = true
		}
		Expect(names).To(HaveKey("plan.doc"))
		Expect(names).To(HaveKey("plan-1.doc"))
		Expect(names).To(HaveKey("plan-2.doc"))
		Expect(pkg.Manifest.Warnings).To(HaveLen(2))
	})

	It("seals an empty accumulation at Flush with a manifest-only package", func() {
		dir := GinkgoT().TempDir()
		p := New(Options{OutputDir: dir, Trigger: Trigger{MaxFiles: 100}, MetadataEnabled: true}, &memberSource{})

		pkg, err := p.Flush()
		Expect(err).To(BeNil())
		Expect(pkg).ToNot(BeNil())
		Expect(pkg.MemberRefs).To(BeEmpty())
		Expect(pkg.Manifest.Files).To(BeEmpty())
		Expect(pkg.Manifest.Warnings).To(ContainElement(ContainSubstring("empty package")))
	})

	It("continues sealing when one member fails to copy, reporting it in manifest errors", func() {
		dir := GinkgoT().TempDir()
		src := &memberSource{content: map[string]string{"a": "ok"}}
		p := New(Options{OutputDir: dir, Trigger: Trigger{MaxFiles: 2}, MetadataEnabled: true}, src)

		_, addErr := p.Add(ref("a", 2))
		Expect(addErr).To(BeNil())
		pkg, addErr := p.Add(ref("missing", 2))
		Expect(addErr).To(BeNil())
		Expect(pkg).ToNot(BeNil())
		Expect(pkg.Manifest.Files).To(HaveLen(1))
		Expect(pkg.Manifest.Errors).To(HaveLen(1))
	})

	It("round-trips a manifest through JSON byte-for-byte", func() {
		dir := GinkgoT().TempDir()
		src := &memberSource{content: map[string]string{"a": "1"}}
		p := New(Options{OutputDir: dir, Trigger: Trigger{MaxFiles: 1}, MetadataEnabled: true, Version: "v1", Tags: []string{"nightly"}}, src)

		pkg, err := p.Add(ref("a", 1))
		Expect(err).To(BeNil())
		Expect(pkg).ToNot(BeNil())

		data, merr := json.Marshal(pkg.Manifest)
		Expect(merr).To(BeNil())

		var decoded model.Manifest
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())

		if diff := cmp.Diff(pkg.Manifest, decoded); diff != "" {
			Fail("manifest round-trip mismatch (-want +got):\n" + diff)
		}
	})

	It("seals to a .tar.zst file when CompressionCodec is zstd", func() {
		dir := GinkgoT().TempDir()
		src := &memberSource{content: map[string]string{"a": "1"}}
		p := New(Options{OutputDir: dir, Trigger: Trigger{MaxFiles: 1}, CompressionCodec: "zstd"}, src)

		pkg, err := p.Add(ref("a", 1))
		Expect(err).To(BeNil())
		Expect(pkg).ToNot(BeNil())
		Expect(pkg.Path).To(HaveSuffix(".tar.zst"))
		_, statErr := os.Stat(pkg.Path)
		Expect(statErr).To(BeNil())
	})
})
