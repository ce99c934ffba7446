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

package contenthash_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/fileingest/contenthash"
	"github.com/sabouaram/fileingest/model"
)

var _ = Describe("Hasher", func() {
	var h *Hasher

	BeforeEach(func() {
		h = New(nil)
	})

	It("digests an empty file as the empty-input hash", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "empty.bin")
		Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())

		digest, err := h.Hash(path, nil)
		Expect(err).To(BeNil())

		want := sha256.Sum256(nil)
		Expect(digest).To(Equal(hex.EncodeToString(want[:])))
	})

	It("matches crypto/sha256 for a small file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "small.txt")
		content := []byte("the quick brown fox jumps over the lazy dog")
		Expect(os.WriteFile(path, content, 0o644)).To(Succeed())

		digest, err := h.Hash(path, nil)
		Expect(err).To(BeNil())

		want := sha256.Sum256(content)
		Expect(digest).To(Equal(hex.EncodeToString(want[:])))
	})

	It("reports a non-existent path as an error", func() {
		_, err := h.Hash(filepath.Join(GinkgoT().TempDir(), "missing.bin"), nil)
		Expect(err).ToNot(BeNil())
	})

	It("reports monotone progress terminating at 100 for a large streamed file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "large.bin")
		content := make([]byte, 101<<20) // forces the >=100MiB streaming tier
		Expect(os.WriteFile(path, content, 0o644)).To(Succeed())

		var seen []int
		digest, err := h.Hash(path, func(pct int) { seen = append(seen, pct) })
		Expect(err).To(BeNil())

		want := sha256.Sum256(content)
		Expect(digest).To(Equal(hex.EncodeToString(want[:])))

		Expect(seen).ToNot(BeEmpty())
		Expect(seen[len(seen)-1]).To(Equal(100))
		for i := 1; i < len(seen); i++ {
			Expect(seen[i]).To(BeNumerically(">=", seen[i-1]))
		}
	})

	It("preserves input order across a concurrent batch", func() {
		dir := GinkgoT().TempDir()
		var refs []*model.FileRef
		for i := 0; i < 8; i++ {
			name := filepath.Join(dir, string(rune('a'+i))+".txt")
			Expect(os.WriteFile(name, []byte{byte(i)}, 0o644)).To(Succeed())
			refs = append(refs, &model.FileRef{SourcePath: name, Origin: model.OriginFilesystem})
		}

		results := h.HashBatch(refs, 4)
		Expect(results).To(HaveLen(8))
		for i, r := range results {
			Expect(r.Ref).To(BeIdenticalTo(refs[i]))
			Expect(r.Err).To(BeNil())
			Expect(r.Digest).ToNot(BeEmpty())
		}
	})
})

var _ = Describe("DefaultConcurrency", func() {
	It("never exceeds the file count", func() {
		Expect(DefaultConcurrency(1)).To(Equal(1))
	})

	It("is always at least 1", func() {
		Expect(DefaultConcurrency(0)).To(BeNumerically(">=", 1))
	})
})
