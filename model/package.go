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

// SerializedFileRef is the manifest-safe projection of a FileRef: times
// as ISO-8601 strings.
type SerializedFileRef struct {
	Name         string `json:"name"`
	OriginalName string `json:"originalName"`
	SourcePath   string `json:"sourcePath"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"createdAt"`
	ModifiedAt   string `json:"modifiedAt"`
	Digest       string `json:"digest,omitempty"`
	Origin       Origin `json:"origin"`
}

// Manifest is the JSON document sealed alongside every package.
type Manifest struct {
	CreatedAt         time.Time           `json:"createdAt"`
	PackageID         string              `json:"packageId"`
	Version           string              `json:"version,omitempty"`
	Tags              []string            `json:"tags,omitempty"`
	ChecksumAlgorithm string              `json:"checksumAlgorithm,omitempty"`
	Files             []SerializedFileRef `json:"files"`
	Errors            []string            `json:"errors,omitempty"`
	Warnings          []string            `json:"warnings,omitempty"`
}

// Package is the sealed, immutable unit handed to the transport stage.
type Package struct {
	Path       string
	MemberRefs []*FileRef
	TotalBytes int64
	CreatedAt  time.Time
	Manifest   Manifest
}
