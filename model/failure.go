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

package model

import "time"

// FailureKind classifies a recorded Failure.
type FailureKind string

const (
	KindDirectoryAccess FailureKind = "directoryAccess"
	KindFileStat        FailureKind = "fileStat"
	KindArchiveOpen     FailureKind = "archiveOpen"
	KindArchiveEntry    FailureKind = "archiveEntry"
	KindNestedArchive   FailureKind = "nestedArchive"
	KindIgnoredLarge    FailureKind = "ignoredLargeFile"
	KindStability       FailureKind = "stability"
	KindArchiveStability FailureKind = "archiveStability"
	KindHash            FailureKind = "hash"
	KindPackaging       FailureKind = "packaging"
	KindTransport       FailureKind = "transport"
	KindScanError       FailureKind = "scanError"
)

// Failure is append-only: once recorded it is never mutated.
type Failure struct {
	Kind         FailureKind
	Path         string
	EntryPath    string
	Err          error
	NestingLevel int
	At           time.Time
}

// NewFailure stamps the current time; callers never set At directly so that
// failure ordering reflects detection order even under concurrent stages.
func NewFailure(kind FailureKind, path string, err error) Failure {
	return Failure{Kind: kind, Path: path, Err: err, At: time.Now()}
}
