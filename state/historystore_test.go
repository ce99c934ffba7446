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

package state_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/fileingest/state"
)

var _ = Describe("HistoryStore", func() {
	It("loads successfully as empty when the file is absent", func() {
		path := filepath.Join(GinkgoT().TempDir(), "history.json")
		store, ok := LoadHistoryStore(path)
		Expect(ok).To(BeTrue())
		Expect(store.Contains("abc")).To(BeFalse())
	})

	It("reports failure but still yields an empty store for malformed contents", func() {
		path := filepath.Join(GinkgoT().TempDir(), "history.json")
		Expect(os.WriteFile(path, []byte("{not json array"), 0o644)).To(Succeed())

		store, ok := LoadHistoryStore(path)
		Expect(ok).To(BeFalse())
		Expect(store.Contains("abc")).To(BeFalse())
	})

	It("persists and reloads the digest set", func() {
		path := filepath.Join(GinkgoT().TempDir(), "nested", "history.json")
		store, ok := LoadHistoryStore(path)
		Expect(ok).To(BeTrue())

		Expect(store.Add("digest-1")).To(BeTrue())
		Expect(store.Add("digest-1")).To(BeFalse())
		Expect(store.AddBatch([]string{"digest-2", "digest-1"})).To(Equal(1))

		Expect(store.Save()).To(BeNil())
		Expect(store.Dirty()).To(BeFalse())

		reloaded, ok := LoadHistoryStore(path)
		Expect(ok).To(BeTrue())
		Expect(reloaded.Contains("digest-1")).To(BeTrue())
		Expect(reloaded.Contains("digest-2")).To(BeTrue())
		Expect(reloaded.Contains("digest-3")).To(BeFalse())
	})
})
