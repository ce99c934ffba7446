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

// Package contenthash implements the bounded-memory content digest: a
// size-tiered buffering strategy feeding an abstract hash primitive,
// plus an order-preserving concurrent batch helper.
package contenthash

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"runtime"

	liberr "github.com/sabouaram/fileingest/errors"
	"github.com/sabouaram/fileingest/model"
)

const (
	ErrorOpen CodeError = iota + liberr.MinPkgHash
	ErrorRead
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgHash) {
		panic(fmt.Errorf("error code collision with package fileingest/contenthash"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgHash, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorOpen:
		return "contenthash: cannot open file"
	case ErrorRead:
		return "contenthash: read failed"
	}
	return liberr.NullMessage
}

const (
	tierSmallMax  = 1 << 20         // < 1 MiB
	tierMediumMax = 10 << 20        // 1-10 MiB
	tierLargeMax  = 100 << 20       // 10-100 MiB
	bufSmall      = 64 * 1024       // 64 KiB
	bufMedium     = 1 << 20         // 1 MiB
	bufLarge      = 2 << 20         // 2 MiB
	bufHuge       = 4 << 20         // 4 MiB
)

// NewPrimitive is injected so callers can swap the concrete digest
// algorithm without touching the streaming/tiering logic. The module
// default is SHA-256.
type NewPrimitive func() hash.Hash

func defaultPrimitive() hash.Hash {
	return newSHA256()
}

// ProgressFunc receives a monotone, non-decreasing percentage, terminating
// at exactly 100 once the stream is fully consumed.
type ProgressFunc func(percent int)

// Hasher computes content digests using a size-tiered buffer strategy.
type Hasher struct {
	newHash NewPrimitive
}

// New builds a Hasher. A nil primitive factory defaults to SHA-256.
func New(primitive NewPrimitive) *Hasher {
	if primitive == nil {
		primitive = defaultPrimitive
	}
	return &Hasher{newHash: primitive}
}

// Hash computes the hex digest of path, invoking onProgress (optional) as
// bytes are streamed for files large enough to warrant it.
func (h *Hasher) Hash(path string, onProgress ProgressFunc) (string, liberr.Error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ErrorOpen.Error(nil)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", ErrorOpen.Error(nil)
	}

	size := info.Size()
	sum := h.newHash()

	if size == 0 {
		if onProgress != nil {
			onProgress(100)
		}
		return hex.EncodeToString(sum.Sum(nil)), nil
	}

	bufSize := bufSizeFor(size)
	if onProgress == nil || size < tierLargeMax {
		// Small/medium tiers read-and-digest without progress reporting;
		// progress callbacks are reserved for the >=100MiB tier, but any
		// tier may report if a callback is supplied.
		if _, err := io.CopyBuffer(sum, f, make([]byte, bufSize)); err != nil {
			return "", ErrorRead.Error(nil)
		}
		if onProgress != nil {
			onProgress(100)
		}
		return hex.EncodeToString(sum.Sum(nil)), nil
	}

	buf := make([]byte, bufSize)
	var read int64
	lastPct := -1
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			sum.Write(buf[:n])
			read += int64(n)
			pct := int(read * 100 / size)
			if pct > 100 {
				pct = 100
			}
			if pct > lastPct {
				onProgress(pct)
				lastPct = pct
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", ErrorRead.Error(nil)
		}
	}
	if lastPct < 100 {
		onProgress(100)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

func bufSizeFor(size int64) int {
	switch {
	case size < tierSmallMax:
		return bufSmall
	case size < tierMediumMax:
		return bufMedium
	case size < tierLargeMax:
		return bufLarge
	default:
		return bufHuge
	}
}

// Result is one entry of a batch hash operation's order-preserving output.
type Result struct {
	Ref    *model.FileRef
	Digest string
	Err    liberr.Error
}

// HashBatch hashes files concurrently, preserving input order in the
// returned slice. A
// concurrency of 0 derives the default via DefaultConcurrency.
func (h *Hasher) HashBatch(files []*model.FileRef, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency(len(files))
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(files))
	sem := make(chan struct{}, concurrency)
	done := make(chan struct{})

	for i, ref := range files {
		i, ref := i, ref
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			digest, err := h.Hash(pathFor(ref), nil)
			results[i] = Result{Ref: ref, Digest: digest, Err: err}
		}()
	}
	for range files {
		<-done
	}
	return results
}

func pathFor(ref *model.FileRef) string {
	if ref.Origin == model.OriginArchive {
		return ref.ArchivePath
	}
	return ref.SourcePath
}

// DefaultConcurrency derives min(cpuCount, freeMemMiB/100, fileCount),
// minimum 1.
func DefaultConcurrency(fileCount int) int {
	if fileCount < 1 {
		return 1
	}
	n := runtime.NumCPU()
	if mem := freeMemMiB(); mem > 0 && mem/100 < n {
		n = mem / 100
	}
	if fileCount < n {
		n = fileCount
	}
	if n < 1 {
		n = 1
	}
	return n
}
