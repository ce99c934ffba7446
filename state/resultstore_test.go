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
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/fileingest/model"
	. "github.com/sabouaram/fileingest/state"
)

var _ = Describe("Result document", func() {
	It("builds the <resultsDir>/<taskId>-<scanId>.json path", func() {
		Expect(ResultPath("/results", "task-1", "scan-9")).
			To(Equal(filepath.Join("/results", "task-1-scan-9.json")))
	})

	It("round-trips a Result through an atomic write", func() {
		dir := GinkgoT().TempDir()
		path := ResultPath(dir, "task-1", "scan-9")

		result := &model.Result{
			Success:        true,
			ProcessedFiles: []string{"a.txt", "b.txt"},
			TaskID:         "task-1",
			ScanID:         "scan-9",
			ElapsedTimeMs:  1234,
		}

		Expect(SaveResult(path, result)).To(BeNil())

		loaded, err := LoadResult(path)
		Expect(err).To(BeNil())
		Expect(loaded.Success).To(BeTrue())
		Expect(loaded.ProcessedFiles).To(ConsistOf("a.txt", "b.txt"))
		Expect(loaded.ElapsedTimeMs).To(Equal(int64(1234)))
	})

	It("reports a load error for a missing result file", func() {
		_, err := LoadResult(filepath.Join(GinkgoT().TempDir(), "missing.json"))
		Expect(err).ToNot(BeNil())
	})
})
