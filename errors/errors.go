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

package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error extends the standard error with a numeric code and a parent chain.
type Error interface {
	error

	Code() uint16
	IsCode(code CodeError) bool
	HasCode(code CodeError) bool

	Add(parent ...error)
	HasParent() bool
	GetParent(withMainError bool) []error

	Is(err error) bool
	Unwrap() []error

	GetTrace() string
}

type ers struct {
	c uint16
	e string
	p []Error
	t runtime.Frame
}

func (e *ers) captureTrace() {
	pc := make([]uintptr, 1)
	if n := runtime.Callers(3, pc); n > 0 {
		frames := runtime.CallersFrames(pc[:n])
		f, _ := frames.Next()
		e.t = f
	}
}

func (e *ers) Code() uint16 { return e.c }

func (e *ers) IsCode(code CodeError) bool { return e.c == code.Uint16() }

func (e *ers) HasCode(code CodeError) bool {
	if e.IsCode(code) {
		return true
	}
	for _, p := range e.p {
		if p.HasCode(code) {
			return true
		}
	}
	return false
}

func (e *ers) Add(parent ...error) {
	for _, v := range parent {
		if v == nil {
			continue
		}
		if er, ok := v.(*ers); ok {
			e.p = append(e.p, er)
		} else if err, ok := v.(Error); ok {
			e.p = append(e.p, err)
		} else {
			e.p = append(e.p, &ers{e: v.Error()})
		}
	}
}

func (e *ers) HasParent() bool { return len(e.p) > 0 }

func (e *ers) GetParent(withMainError bool) []error {
	res := make([]error, 0, len(e.p)+1)
	if withMainError {
		res = append(res, &ers{c: e.c, e: e.e, t: e.t})
	}
	for _, p := range e.p {
		res = append(res, p.GetParent(true)...)
	}
	return res
}

func (e *ers) Is(err error) bool {
	if err == nil {
		return false
	}
	if er, ok := err.(*ers); ok {
		return strings.EqualFold(e.e, er.e) && e.c == er.c
	}
	return strings.EqualFold(e.e, err.Error())
}

func (e *ers) Unwrap() []error {
	if len(e.p) == 0 {
		return nil
	}
	r := make([]error, 0, len(e.p))
	for _, v := range e.p {
		r = append(r, v)
	}
	return r
}

func (e *ers) GetTrace() string {
	if e.t.File != "" {
		return fmt.Sprintf("%s#%d", filterPath(e.t.File), e.t.Line)
	}
	return ""
}

func (e *ers) Error() string {
	if len(e.p) == 0 {
		return e.e
	}
	parts := make([]string, 0, len(e.p)+1)
	parts = append(parts, e.e)
	for _, p := range e.p {
		parts = append(parts, p.Error())
	}
	return strings.Join(parts, ": ")
}

func filterPath(p string) string {
	if i := strings.LastIndex(p, "/fileingest/"); i >= 0 {
		return p[i+len("/fileingest/"):]
	}
	return p
}
