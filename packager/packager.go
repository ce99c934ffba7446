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

// Package packager implements the accumulate-then-seal packaging stage:
// members are buffered until a trigger threshold or end-of-stream, then
// copied into a scratch directory, described by a manifest, and
// compressed into a single archive.
package packager

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	liberr "github.com/sabouaram/fileingest/errors"
	"github.com/sabouaram/fileingest/model"
)

const (
	ErrorScratch CodeError = iota + liberr.MinPkgPackager
	ErrorCompress
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgPackager) {
		panic(fmt.Errorf("error code collision with package fileingest/packager"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgPackager, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorScratch:
		return "packager: failed to prepare scratch directory"
	case ErrorCompress:
		return "packager: failed to compress package"
	}
	return liberr.NullMessage
}

// Trigger is the sealing threshold.
type Trigger struct {
	MaxFiles  int
	MaxSizeMB int64
}

func (t Trigger) crossed(members int, byteSum int64) bool {
	if t.MaxFiles > 0 && members >= t.MaxFiles {
		return true
	}
	if t.MaxSizeMB > 0 && byteSum >= t.MaxSizeMB*1024*1024 {
		return true
	}
	return false
}

// Source opens the byte content for a FileRef, regardless of whether it
// originates on the filesystem or inside an archive. The packager only
// ever reads a FileRef's bytes, never mutates them.
type Source interface {
	Open(ref *model.FileRef) (io.ReadCloser, error)
}

// Options configures a Packager.
type Options struct {
	OutputDir         string
	NamePattern       string
	Trigger           Trigger
	MetadataEnabled   bool
	Version           string
	Tags              []string
	ChecksumAlgorithm string
	TaskID            string
	ScanID            string

	// CompressionCodec selects the package archive's compression codec:
	// "gzip" (default) or "zstd". Unknown values fall back to gzip.
	CompressionCodec string
}

// Packager accumulates matched-and-hashed FileRefs and seals them into
// Packages under the configured trigger policy.
type Packager struct {
	opts   Options
	source Source

	mu        sync.Mutex
	members   []*model.FileRef
	byteSum   int64
	nextIndex int
}

// New builds a Packager. source supplies member bytes at sealing time.
func New(opts Options, source Source) *Packager {
	return &Packager{opts: opts, source: source}
}

// Add appends ref to the current accumulation, sealing and returning a
// Package if the configured trigger is crossed.
func (p *Packager) Add(ref *model.FileRef) (*model.Package, liberr.Error) {
	p.mu.Lock()
	p.members = append(p.members, ref)
	p.byteSum += ref.Size
	crossed := p.opts.Trigger.crossed(len(p.members), p.byteSum)
	p.mu.Unlock()

	if !crossed {
		return nil, nil
	}
	return p.Seal()
}

// Flush seals whatever remains, including an empty accumulation; callers
// invoke this once at end-of-stream.
func (p *Packager) Flush() (*model.Package, liberr.Error) {
	return p.Seal()
}

// Seal assigns final names, copies member bytes into a scratch directory,
// emits a manifest, compresses the result, and resets accumulation state.
func (p *Packager) Seal() (*model.Package, liberr.Error) {
	p.mu.Lock()
	members := p.members
	byteSum := p.byteSum
	index := p.nextIndex
	p.members = nil
	p.byteSum = 0
	p.nextIndex++
	p.mu.Unlock()

	names, warnings := resolveCollisions(members)
	if len(members) == 0 {
		warnings = append(warnings, "empty package: no members were accumulated before sealing")
	}

	scratch, err := os.MkdirTemp(p.opts.OutputDir, "pkg-scratch-*")
	if err != nil {
		return nil, ErrorScratch.Error(nil)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	var (
		errorMsgs []string
		serialized []model.SerializedFileRef
		copiedBytes int64
	)

	for _, ref := range members {
		name := names[ref]
		ref.PackageEntryName = name

		if err := p.copyMember(ref, scratch, name); err != nil {
			errorMsgs = append(errorMsgs, fmt.Sprintf("packaging: %s: %v", ref.SourcePath, err))
			continue
		}
		copiedBytes += ref.Size
		serialized = append(serialized, model.SerializedFileRef{
			Name:         name,
			OriginalName: ref.DisplayName,
			SourcePath:   ref.SourcePath,
			Size:         ref.Size,
			CreatedAt:    ref.CreatedAt.Format(time.RFC3339),
			ModifiedAt:   ref.ModifiedAt.Format(time.RFC3339),
			Digest:       ref.Digest,
			Origin:       ref.Origin,
		})
	}

	manifest := model.Manifest{
		CreatedAt:         time.Now(),
		PackageID:         fmt.Sprintf("pkg_%d_%s", time.Now().UnixNano(), uuid.NewString()),
		Version:           p.opts.Version,
		Tags:              p.opts.Tags,
		ChecksumAlgorithm: p.opts.ChecksumAlgorithm,
		Files:             serialized,
		Errors:            errorMsgs,
		Warnings:          warnings,
	}

	if p.opts.MetadataEnabled {
		data, _ := json.MarshalIndent(manifest, "", "  ")
		if err := os.WriteFile(filepath.Join(scratch, "manifest.json"), data, 0o644); err != nil {
			return nil, ErrorScratch.Error(nil)
		}
	}

	ext, compress := ".tar.gz", compressDir
	if p.opts.CompressionCodec == "zstd" {
		ext, compress = ".tar.zst", compressDirZstd
	}
	targetName := p.resolveTargetName(index) + ext
	targetPath := filepath.Join(p.opts.OutputDir, targetName)
	if err := compress(scratch, targetPath); err != nil {
		return nil, ErrorCompress.Error(nil)
	}

	return &model.Package{
		Path:       targetPath,
		MemberRefs: members,
		TotalBytes: copiedBytes,
		CreatedAt:  manifest.CreatedAt,
		Manifest:   manifest,
	}, nil
}

func (p *Packager) copyMember(ref *model.FileRef, scratch, name string) error {
	src, err := p.source.Open(ref)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(filepath.Join(scratch, name))
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	_, err = io.Copy(dst, src)
	return err
}

// resolveTargetName expands packageNamePattern substitutions:
// {taskId}, {scanId}, {index}, {date}.
func (p *Packager) resolveTargetName(index int) string {
	pattern := p.opts.NamePattern
	if pattern == "" {
		pattern = "package_{taskId}_{index}"
	}
	r := strings.NewReplacer(
		"{taskId}", p.opts.TaskID,
		"{scanId}", p.opts.ScanID,
		"{index}", strconv.Itoa(index),
		"{date}", time.Now().Format("20060102"),
	)
	return r.Replace(pattern)
}

// resolveCollisions assigns each member a final entry name, renaming
// colliding base names to "name-N.ext".
func resolveCollisions(members []*model.FileRef) (map[*model.FileRef]string, []string) {
	used := make(map[string]struct{})
	names := make(map[*model.FileRef]string, len(members))
	var warnings []string

	for _, ref := range members {
		base := ref.DisplayName
		if base == "" {
			base = filepath.Base(ref.SourcePath)
		}
		final := base
		if _, taken := used[final]; taken {
			ext := filepath.Ext(base)
			stem := strings.TrimSuffix(base, ext)
			for n := 1; ; n++ {
				candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
				if _, taken := used[candidate]; !taken {
					final = candidate
					warnings = append(warnings, fmt.Sprintf(
						"name conflict: %q (target %q) renamed to %q", base, base, final))
					break
				}
			}
		}
		used[final] = struct{}{}
		names[ref] = final
	}
	return names, warnings
}

func compressDir(scratchDir, targetPath string) error {
	out, err := os.Create(targetPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	gz := gzip.NewWriter(out)
	defer func() { _ = gz.Close() }()

	tw := newTarWriter(gz)
	defer func() { _ = tw.Close() }()

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addTarEntry(tw, filepath.Join(scratchDir, entry.Name()), entry.Name()); err != nil {
			return err
		}
	}
	return nil
}
