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

// Package matchrule implements the rule matcher: an
// (extension-set, name-regex) disjunction evaluated against a filename.
package matchrule

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	liberr "github.com/sabouaram/fileingest/errors"
)

const (
	ErrorEmptyRules CodeError = iota + liberr.MinPkgMatch
	ErrorInvalidRegex
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgMatch) {
		panic(fmt.Errorf("error code collision with package fileingest/matchrule"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgMatch, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorEmptyRules:
		return "matchrule: at least one rule is required"
	case ErrorInvalidRegex:
		return "matchrule: invalid name pattern"
	}
	return liberr.NullMessage
}

// RuleSpec is the caller-facing declaration of a single rule: a set of file
// extensions and a regular expression against the base filename.
type RuleSpec struct {
	Extensions  []string `toml:"extensions"`
	NamePattern string   `toml:"name_pattern"`
}

// rule is a compiled RuleSpec: the extension set pre-hashed, the regex
// pre-compiled once.
type rule struct {
	ext map[string]struct{}
	re  *regexp.Regexp
}

// Matcher evaluates the ordered disjunction of compiled rules against a
// filename: matches iff some rule's extension set contains the file's
// extension AND that rule's regex matches the base name.
type Matcher struct {
	rules []rule
}

// New compiles specs into a Matcher. An invalid regex is a fatal
// configuration error.
func New(specs []RuleSpec) (*Matcher, liberr.Error) {
	if len(specs) == 0 {
		return nil, ErrorEmptyRules.Error(nil)
	}

	m := &Matcher{rules: make([]rule, 0, len(specs))}
	for _, s := range specs {
		re, err := regexp.Compile(s.NamePattern)
		if err != nil {
			return nil, ErrorInvalidRegex.Error(err)
		}

		extSet := make(map[string]struct{}, len(s.Extensions))
		for _, e := range s.Extensions {
			extSet[normalizeExt(e)] = struct{}{}
		}

		m.rules = append(m.rules, rule{ext: extSet, re: re})
	}
	return m, nil
}

// Matches reports whether filename satisfies any configured rule. The
// first positive rule decides.
func (m *Matcher) Matches(filename string) bool {
	base := filepath.Base(filename)
	ext := normalizeExt(filepath.Ext(base))

	for _, r := range m.rules {
		if _, ok := r.ext[ext]; !ok {
			continue
		}
		if r.re.MatchString(base) {
			return true
		}
	}
	return false
}

func normalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	e = strings.TrimPrefix(e, ".")
	return e
}
