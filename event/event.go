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

// Package event carries the structured progress/failure events the
// pipeline emits. The core only
// calls back into a single Sink to avoid reentrant emission.
package event

import "github.com/sabouaram/fileingest/model"

// StageCounts mirrors queuestate.Counts plus the retrying tally for one
// named stage.
type StageCounts struct {
	Waiting, Processing, Completed, Failed, Retrying, Total int
}

// Progress is the monotonic counter snapshot.
type Progress struct {
	ScannedDirs           int
	ScannedFiles          int
	MatchedFiles          int
	ArchivesScanned       int
	NestedArchivesScanned int
	IgnoredLargeFiles     int
	SkippedDirs           int
	CurrentNestingLevel   int
	Stages                map[string]StageCounts
}

// ProgressFunc receives progress snapshots as the run advances.
type ProgressFunc func(Progress)

// FailureFunc receives every recorded Failure; the failure log is
// append-only.
type FailureFunc func(model.Failure)

// Sink bundles both callbacks so the pipeline has one call site per event
// kind.
type Sink struct {
	OnProgress ProgressFunc
	OnFailure  FailureFunc
}

func (s Sink) progress(p Progress) {
	if s.OnProgress != nil {
		s.OnProgress(p)
	}
}

func (s Sink) failure(f model.Failure) {
	if s.OnFailure != nil {
		s.OnFailure(f)
	}
}

// Emit is the pipeline's single call site for both event kinds.
func (s Sink) Emit(p *Progress, f *model.Failure) {
	if p != nil {
		s.progress(*p)
	}
	if f != nil {
		s.failure(*f)
	}
}
