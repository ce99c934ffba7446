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

// Package errors provides the error-code model shared by every fileingest
// package: a CodeError classification (HTTP-status-like numbering), a
// per-package code range, and an Error interface with parent chaining.
package errors

import (
	"math"
	"sync"
)

// Package code ranges. Each package registers its own block of codes by
// adding its own constant block starting at MinPkg<Name> and registering a
// Message function for it in an init().
const (
	MinPkgMatch      CodeError = 100
	MinPkgArchive    CodeError = 200
	MinPkgScanner    CodeError = 300
	MinPkgStability  CodeError = 400
	MinPkgHash       CodeError = 500
	MinPkgDedup      CodeError = 600
	MinPkgPackager   CodeError = 700
	MinPkgTransport  CodeError = 800
	MinPkgPipeline   CodeError = 900
	MinPkgState      CodeError = 1000
	MinPkgConfig     CodeError = 1100
	MinAvailable     CodeError = 2000
)

const (
	UnknownError   CodeError = 0
	UnknownMessage           = "unknown error"
	NullMessage              = ""
)

// CodeError is a numeric error classification, similar in spirit to an
// HTTP status code, but scoped per fileingest package.
type CodeError uint16

// Message renders a CodeError into a human-readable string, using the
// Message function registered for its package range.
func (c CodeError) Message() string {
	m.RLock()
	defer m.RUnlock()

	base := findBase(c)
	if base == UnknownError && c != UnknownError {
		return UnknownMessage
	}

	if fct, ok := idMsgFct[base]; ok {
		if s := fct(c); s != NullMessage {
			return s
		}
	}

	return UnknownMessage
}

// Error builds a new Error value for this code, optionally chaining parent
// errors the way ftpclient.ErrorFTPLogin.Error(err) does in the teacher repo.
func (c CodeError) Error(parent ...error) Error {
	e := &ers{c: uint16(c), e: c.Message()}
	e.captureTrace()
	e.Add(parent...)
	return e
}

// Uint16 returns the raw numeric code.
func (c CodeError) Uint16() uint16 { return uint16(c) }

// ParseCodeError clamps an arbitrary integer into the CodeError range.
func ParseCodeError(i int64) CodeError {
	if i < 0 {
		return UnknownError
	} else if i >= int64(math.MaxUint16) {
		return math.MaxUint16
	}
	return CodeError(i)
}

var (
	m         sync.RWMutex
	idMsgFct  = make(map[CodeError]Message)
	idRanges  = make([]CodeError, 0, 16)
)

// Message is the function signature a package registers to render its own
// codes. It receives the full code and must handle every code in its range.
type Message func(code CodeError) (message string)

// RegisterIdFctMessage registers fct as the message renderer for every code
// in the range starting at minCode. Mirrors liberr.RegisterIdFctMessage.
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	m.Lock()
	defer m.Unlock()

	idMsgFct[minCode] = fct
	idRanges = append(idRanges, minCode)
}

// ExistInMapMessage reports whether a range owning minCode is already
// registered — packages call this in their init() and panic on collision,
// exactly like ftpclient's init() does.
func ExistInMapMessage(minCode CodeError) bool {
	m.RLock()
	defer m.RUnlock()

	_, ok := idMsgFct[minCode]
	return ok
}

// findBase returns the highest registered range start that is <= c.
func findBase(c CodeError) CodeError {
	var best CodeError = UnknownError
	for _, r := range idRanges {
		if r <= c && r > best {
			best = r
		}
	}
	return best
}
