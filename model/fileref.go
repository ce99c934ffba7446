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

// Package model holds the data types shared across every pipeline stage:
// FileRef, Failure, Package, Manifest, Result and their invariants.
package model

import "time"

// Origin identifies where a FileRef's bytes live.
type Origin string

const (
	OriginFilesystem Origin = "filesystem"
	OriginArchive    Origin = "archive"
)

// FileRef is the core handle to a matched file, carried unmodified through
// the pipeline except by the stage that currently owns it (single-owner
// rule).
type FileRef struct {
	SourcePath string
	DisplayName string
	Size        int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Origin      Origin

	// Set iff Origin == OriginArchive.
	ArchivePath  string
	InternalPath string

	// NestingLevel is 0 for filesystem files, 1+ for archive entries,
	// incrementing once per containing archive on the way up.
	NestingLevel int

	// PackageEntryName is assigned by the packager at seal time.
	PackageEntryName string

	// Digest is set by the hasher; empty means "no computable digest".
	Digest string

	Metadata map[string]string
}

// Key identifies a FileRef for path-uniqueness bookkeeping: the canonical
// source path, plus the internal archive path when relevant, since two
// archive members can share a SourcePath (the archive itself).
func (f *FileRef) Key() string {
	if f.Origin == OriginArchive {
		return f.ArchivePath + "!" + f.InternalPath
	}
	return f.SourcePath
}

// Clone returns a shallow copy safe to hand to a different stage.
func (f *FileRef) Clone() *FileRef {
	cp := *f
	if f.Metadata != nil {
		cp.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
