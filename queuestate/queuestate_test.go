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

package queuestate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/fileingest/model"
	. "github.com/sabouaram/fileingest/queuestate"
)

var _ = Describe("QueueState", func() {
	It("moves a ref through waiting -> processing -> completed", func() {
		q := New()
		ref := &model.FileRef{SourcePath: "/a"}
		q.Enqueue(ref)

		Expect(q.Counts().Waiting).To(Equal(1))

		taken := q.Take(1)
		Expect(taken).To(HaveLen(1))
		Expect(q.Counts().Processing).To(Equal(1))

		q.MarkCompleted(ref)
		counts := q.Counts()
		Expect(counts.Processing).To(Equal(0))
		Expect(counts.Completed).To(Equal(1))
	})

	It("reports idle only once waiting and processing are both empty", func() {
		q := New()
		ref := &model.FileRef{SourcePath: "/a"}
		q.Enqueue(ref)
		Expect(q.Idle()).To(BeFalse())

		q.Take(1)
		Expect(q.Idle()).To(BeFalse())

		q.MarkFailed(ref)
		Expect(q.Idle()).To(BeTrue())
	})
})

var _ = Describe("RetryQueue", func() {
	It("drains only entries matching the requested origin stage", func() {
		rq := NewRetryQueue()
		a := &model.FileRef{SourcePath: "/a"}
		b := &model.FileRef{SourcePath: "/b"}
		rq.Add(a, "hash")
		rq.Add(b, "transport")

		Expect(rq.Len()).To(Equal(2))

		hashDrained := rq.DrainStage("hash")
		Expect(hashDrained).To(ConsistOf(a))
		Expect(rq.Len()).To(Equal(1))

		transportDrained := rq.DrainStage("transport")
		Expect(transportDrained).To(ConsistOf(b))
		Expect(rq.Len()).To(Equal(0))
	})

	It("counts entries per origin stage independently", func() {
		rq := NewRetryQueue()
		rq.Add(&model.FileRef{SourcePath: "/a"}, "hash")
		rq.Add(&model.FileRef{SourcePath: "/b"}, "hash")
		rq.Add(&model.FileRef{SourcePath: "/c"}, "transport")

		Expect(rq.CountStage("hash")).To(Equal(2))
		Expect(rq.CountStage("transport")).To(Equal(1))
		Expect(rq.CountStage("packaging")).To(Equal(0))

		rq.DrainStage("hash")
		Expect(rq.CountStage("hash")).To(Equal(0))
	})
})
