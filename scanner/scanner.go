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

// Package scanner implements the depth-bounded directory traversal: it
// emits matched FileRefs from the filesystem and from archives, and
// reports failures without aborting the walk.
package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sabouaram/fileingest/archivefmt"
	liberr "github.com/sabouaram/fileingest/errors"
	"github.com/sabouaram/fileingest/matchrule"
	"github.com/sabouaram/fileingest/model"
)

const (
	ErrorNoRoots CodeError = iota + liberr.MinPkgScanner
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgScanner) {
		panic(fmt.Errorf("error code collision with package fileingest/scanner"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgScanner, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorNoRoots:
		return "scanner: at least one root directory is required"
	}
	return liberr.NullMessage
}

// Options configures one Scan call: the subset of run configuration the
// scanner itself consumes.
type Options struct {
	// Depth caps traversal depth; -1 means unlimited.
	Depth int
	// SkipDirs are case-insensitive directory names/paths; both path
	// separators are accepted, and doublestar glob patterns (e.g.
	// "**/node_modules") are also honoured.
	SkipDirs []string
	// MaxFileSize is the per-file size cap (bytes); larger files become
	// ignoredLargeFile failures instead of matches.
	MaxFileSize int64
	// ScanNestedArchives enables archive-in-archive recursion.
	ScanNestedArchives bool
	// MaxNestedLevel bounds archive recursion depth.
	MaxNestedLevel int
}

// Sink receives matched FileRefs, Failures and progress updates as the
// scan proceeds; implementations must not block.
type Sink interface {
	Matched(*model.FileRef)
	Failed(model.Failure)
	Progress(event ProgressEvent)
}

// ProgressEvent is a lightweight counter update emitted after each
// directory visit and each matched emission.
type ProgressEvent struct {
	ScannedDirs  int
	ScannedFiles int
	MatchedFiles int
}

// Scanner performs the depth-first, multi-root traversal.
type Scanner struct {
	matcher *matchrule.Matcher
	enum    *archivefmt.Enumerator
	opts    Options

	// effective skip set also includes the pipeline's own scratch/output
	// roots: the scanner refuses to enter outputDir or the scratch roots.
	excludeRoots []string

	dirs, files, matched int
}

// New builds a Scanner. excludeRoots are additional absolute directories
// (output/scratch dirs) that are always skipped regardless of SkipDirs.
func New(matcher *matchrule.Matcher, enum *archivefmt.Enumerator, opts Options, excludeRoots ...string) *Scanner {
	return &Scanner{matcher: matcher, enum: enum, opts: opts, excludeRoots: excludeRoots}
}

// Scan walks every root sequentially; matched FileRefs accumulate into a
// single downstream stream via sink.
func (s *Scanner) Scan(roots []string, sink Sink) liberr.Error {
	if len(roots) == 0 {
		return ErrorNoRoots.Error(nil)
	}

	for _, root := range roots {
		s.walk(root, 0, sink)
	}
	return nil
}

func (s *Scanner) walk(dir string, depth int, sink Sink) {
	if s.opts.Depth >= 0 && depth > s.opts.Depth {
		return
	}

	if s.shouldSkip(dir) {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		sink.Failed(model.NewFailure(model.KindDirectoryAccess, dir, err))
		return
	}

	s.dirs++
	sink.Progress(ProgressEvent{ScannedDirs: s.dirs, ScannedFiles: s.files, MatchedFiles: s.matched})

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			s.walk(full, depth+1, sink)
			continue
		}

		s.visitFile(full, sink)
	}
}

func (s *Scanner) visitFile(path string, sink Sink) {
	info, err := os.Stat(path)
	if err != nil {
		sink.Failed(model.NewFailure(model.KindFileStat, path, err))
		return
	}
	s.files++

	if isArchiveExt(path) {
		s.scanArchive(path, info, sink)
		return
	}

	if !s.matcher.Matches(path) {
		return
	}

	if info.Size() > s.opts.MaxFileSize {
		sink.Failed(model.NewFailure(model.KindIgnoredLarge, path,
			fmt.Errorf("size %d exceeds configured limit %d", info.Size(), s.opts.MaxFileSize)))
		return
	}

	ref := &model.FileRef{
		SourcePath:  path,
		DisplayName: filepath.Base(path),
		Size:        info.Size(),
		CreatedAt:   info.ModTime(),
		ModifiedAt:  info.ModTime(),
		Origin:      model.OriginFilesystem,
	}
	s.matched++
	sink.Matched(ref)
	sink.Progress(ProgressEvent{ScannedDirs: s.dirs, ScannedFiles: s.files, MatchedFiles: s.matched})
}

func (s *Scanner) scanArchive(path string, info os.FileInfo, sink Sink) {
	maxNesting := 1
	if s.opts.ScanNestedArchives {
		maxNesting = s.opts.MaxNestedLevel
		if maxNesting < 1 {
			maxNesting = 1
		}
	}

	enum := s.enum
	if enum == nil {
		enum = archivefmt.NewEnumerator(nil, maxNesting)
	}

	enum.Enumerate(path, func(archivePath, entryPath string, entry archivefmt.EntryInfo, body io.Reader, nesting int) error {
		if !s.matcher.Matches(entryPath) {
			return nil
		}

		ref := &model.FileRef{
			SourcePath:   archivePath,
			DisplayName:  filepath.Base(entryPath),
			Size:         entry.Size,
			CreatedAt:    info.ModTime(),
			ModifiedAt:   info.ModTime(),
			Origin:       model.OriginArchive,
			ArchivePath:  archivePath,
			InternalPath: entryPath,
			NestingLevel: nesting,
		}
		s.matched++
		sink.Matched(ref)
		sink.Progress(ProgressEvent{ScannedDirs: s.dirs, ScannedFiles: s.files, MatchedFiles: s.matched})
		return nil
	}, sink.Failed)
}

func (s *Scanner) shouldSkip(dir string) bool {
	base := filepath.Base(dir)
	clean := filepath.Clean(dir)

	for _, ex := range s.excludeRoots {
		if sameOrUnder(clean, ex) {
			return true
		}
	}

	for _, skip := range s.opts.SkipDirs {
		norm := strings.ToLower(filepath.ToSlash(skip))
		if strings.ContainsAny(norm, "*?[") {
			if ok, _ := doublestar.Match(norm, strings.ToLower(filepath.ToSlash(clean))); ok {
				return true
			}
			continue
		}

		norm = strings.Trim(norm, "/")
		if norm == "." || norm == ".." || norm == "" {
			continue
		}

		if strings.EqualFold(base, norm) {
			return true
		}
		if strings.Contains(strings.ToLower(filepath.ToSlash(clean)), "/"+norm+"/") ||
			strings.HasSuffix(strings.ToLower(filepath.ToSlash(clean)), "/"+norm) {
			return true
		}
	}

	return false
}

func sameOrUnder(path, root string) bool {
	root = filepath.Clean(root)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

func isArchiveExt(path string) bool {
	lower := strings.ToLower(path)
	for _, suf := range []string{".zip", ".tar", ".tgz", ".tar.gz", ".tar.bz2", ".tar.xz", ".tar.lz4", ".rar"} {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}
