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

// Package transport defines the abstract upload interface
// the pipeline drives; concrete protocol adapters (transport/ftp) plug in
// behind it.
package transport

import (
	"context"
	"fmt"
	"time"

	liberr "github.com/sabouaram/fileingest/errors"
)

const (
	ErrorExhausted CodeError = iota + liberr.MinPkgTransport
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgTransport) {
		panic(fmt.Errorf("error code collision with package fileingest/transport"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgTransport, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorExhausted:
		return "transport: upload retries exhausted"
	}
	return liberr.NullMessage
}

// Result is the outcome of one upload attempt.
type Result struct {
	Success    bool
	LocalPath  string
	RemotePath string
	Err        error
	StartTime  time.Time
	EndTime    time.Time
}

// Transport is the abstract uploader the pipeline drives; concrete
// protocol clients (FTP/FTPS/SFTP) are external.
type Transport interface {
	Connect(ctx context.Context) error
	Upload(ctx context.Context, localPath, remotePath string) error
	Disconnect() error
}

// RetryOptions bounds one UploadWithRetry call.
type RetryOptions struct {
	RetryCount int
	Timeout    time.Duration
	RetryDelay time.Duration

	// OnAttemptFailed, if set, is invoked once for every attempt that
	// fails but will be retried (not the final, exhausting attempt),
	// so the caller can surface it as an observed, non-terminal failure
	// the same way the other stages report a transient error while it
	// still awaits redelivery.
	OnAttemptFailed func(attempt int, err error)
}

// UploadWithRetry attempts the upload up to opts.RetryCount times, each
// attempt bounded by opts.Timeout and separated from the next by
// opts.RetryDelay. On exhaustion the result carries the last error.
func UploadWithRetry(ctx context.Context, t Transport, localPath, remotePath string, opts RetryOptions) Result {
	attempts := opts.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	res := Result{LocalPath: localPath, RemotePath: remotePath, StartTime: time.Now()}

	for attempt := 0; attempt < attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}

		err := t.Upload(attemptCtx, localPath, remotePath)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			res.Success = true
			res.EndTime = time.Now()
			return res
		}
		res.Err = err

		if attempt < attempts-1 {
			if opts.OnAttemptFailed != nil {
				opts.OnAttemptFailed(attempt, err)
			}
			if opts.RetryDelay > 0 {
				select {
				case <-time.After(opts.RetryDelay):
				case <-ctx.Done():
					res.EndTime = time.Now()
					return res
				}
			}
		}
	}

	res.EndTime = time.Now()
	return res
}
