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

package matchrule_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/fileingest/matchrule"
)

var _ = Describe("Matcher", func() {
	Describe("New", func() {
		It("rejects an empty rule set", func() {
			_, err := New(nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects an invalid regex", func() {
			_, err := New([]RuleSpec{{Extensions: []string{"txt"}, NamePattern: "("}})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Matches", func() {
		It("matches on extension and regex conjunction", func() {
			m, err := New([]RuleSpec{
				{Extensions: []string{"docx", "doc"}, NamePattern: "^MeiTuan.*"},
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(m.Matches("MeiTuan-zip.docx")).To(BeTrue())
			Expect(m.Matches("other.docx")).To(BeFalse())
			Expect(m.Matches("MeiTuan-report.pdf")).To(BeFalse())
		})

		It("is case-insensitive on the extension and accepts a leading dot", func() {
			m, err := New([]RuleSpec{{Extensions: []string{".TXT"}, NamePattern: ".*"}})
			Expect(err).ToNot(HaveOccurred())

			Expect(m.Matches("report.TXT")).To(BeTrue())
			Expect(m.Matches("report.txt")).To(BeTrue())
		})

		It("lets the first positive rule decide", func() {
			m, err := New([]RuleSpec{
				{Extensions: []string{"log"}, NamePattern: "^keep"},
				{Extensions: []string{"log"}, NamePattern: ".*"},
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(m.Matches("keepme.log")).To(BeTrue())
			Expect(m.Matches("ignored.log")).To(BeTrue())
		})
	})
})
