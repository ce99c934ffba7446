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

package transport_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/fileingest/transport"
)

type flakyTransport struct {
	failUntil int32
	attempts  int32
}

func (f *flakyTransport) Connect(ctx context.Context) error { return nil }
func (f *flakyTransport) Disconnect() error                 { return nil }
func (f *flakyTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	n := atomic.AddInt32(&f.attempts, 1)
	if n <= f.failUntil {
		return errors.New("transient failure")
	}
	return nil
}

var _ = Describe("UploadWithRetry", func() {
	It("succeeds after transient failures within the retry budget", func() {
		t := &flakyTransport{failUntil: 2}
		res := UploadWithRetry(context.Background(), t, "/local", "/remote", RetryOptions{RetryCount: 3, RetryDelay: time.Millisecond})

		Expect(res.Success).To(BeTrue())
		Expect(t.attempts).To(Equal(int32(3)))
	})

	It("reports failure once retries are exhausted", func() {
		t := &flakyTransport{failUntil: 100}
		res := UploadWithRetry(context.Background(), t, "/local", "/remote", RetryOptions{RetryCount: 2, RetryDelay: time.Millisecond})

		Expect(res.Success).To(BeFalse())
		Expect(res.Err).ToNot(BeNil())
		Expect(t.attempts).To(Equal(int32(2)))
	})

	It("treats RetryCount<1 as a single attempt", func() {
		t := &flakyTransport{failUntil: 0}
		res := UploadWithRetry(context.Background(), t, "/local", "/remote", RetryOptions{RetryCount: 0})

		Expect(res.Success).To(BeTrue())
		Expect(t.attempts).To(Equal(int32(1)))
	})

	It("calls OnAttemptFailed once per retried attempt, not for the final exhausting one", func() {
		t := &flakyTransport{failUntil: 100}
		var observed int32
		res := UploadWithRetry(context.Background(), t, "/local", "/remote", RetryOptions{
			RetryCount: 3,
			RetryDelay: time.Millisecond,
			OnAttemptFailed: func(attempt int, err error) {
				atomic.AddInt32(&observed, 1)
			},
		})

		Expect(res.Success).To(BeFalse())
		Expect(observed).To(Equal(int32(2)))
	})

	It("calls OnAttemptFailed for each retried attempt when a later attempt succeeds", func() {
		t := &flakyTransport{failUntil: 2}
		var observed int32
		res := UploadWithRetry(context.Background(), t, "/local", "/remote", RetryOptions{
			RetryCount: 3,
			RetryDelay: time.Millisecond,
			OnAttemptFailed: func(attempt int, err error) {
				atomic.AddInt32(&observed, 1)
			},
		})

		Expect(res.Success).To(BeTrue())
		Expect(observed).To(Equal(int32(2)))
	})
})
