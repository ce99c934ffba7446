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

// Package dedup implements the two-tier duplicate suppression: a
// per-run taskSet and a cross-run historySet backed by the persisted
// state.HistoryStore, with a bounded LRU mirror caching recent history
// hits in front of the store; the store itself keeps the full history
// set in memory.
package dedup

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sabouaram/fileingest/model"
	"github.com/sabouaram/fileingest/state"
)

// Kind is the classification returned by Check.
type Kind string

const (
	NotDuplicate         Kind = "NOT_DUPLICATE"
	TaskDuplicate        Kind = "TASK_DUPLICATE"
	HistoricalDuplicate  Kind = "HISTORICAL_DUPLICATE"
	historyMirrorCapSize      = 50_000
)

// Result is the outcome of one Check call.
type Result struct {
	Kind Kind
	File *model.FileRef
}

// Deduplicator classifies FileRefs by content digest across both the
// current run and prior runs.
type Deduplicator struct {
	history *state.HistoryStore
	mirror  *lru.Cache[string, struct{}]

	historyEnabled bool
	taskEnabled    bool

	mu      sync.Mutex
	taskSet map[string]struct{}

	skippedHistoricalPaths map[string]struct{}
	skippedTaskPaths       map[string]struct{}
	historicals            []*model.FileRef
	taskDuplicates         []*model.FileRef
}

// New builds a Deduplicator. history may be nil if historyEnabled is false.
func New(history *state.HistoryStore, historyEnabled, taskEnabled bool) *Deduplicator {
	mirror, _ := lru.New[string, struct{}](historyMirrorCapSize)
	return &Deduplicator{
		history:                history,
		mirror:                 mirror,
		historyEnabled:         historyEnabled,
		taskEnabled:            taskEnabled,
		taskSet:                make(map[string]struct{}),
		skippedHistoricalPaths: make(map[string]struct{}),
		skippedTaskPaths:       make(map[string]struct{}),
	}
}

// Check classifies file by its Digest. A file without a digest
// is always NOT_DUPLICATE and is never added to any set.
func (d *Deduplicator) Check(file *model.FileRef) Result {
	if file.Digest == "" {
		return Result{Kind: NotDuplicate, File: file}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.historyEnabled && d.inHistory(file.Digest) {
		d.recordOnce(d.skippedHistoricalPaths, file.SourcePath)
		d.historicals = append(d.historicals, file)
		return Result{Kind: HistoricalDuplicate, File: file}
	}

	if d.taskEnabled {
		if _, ok := d.taskSet[file.Digest]; ok {
			d.recordOnce(d.skippedTaskPaths, file.SourcePath)
			d.taskDuplicates = append(d.taskDuplicates, file)
			return Result{Kind: TaskDuplicate, File: file}
		}
	}

	d.taskSet[file.Digest] = struct{}{}
	return Result{Kind: NotDuplicate, File: file}
}

func (d *Deduplicator) inHistory(digest string) bool {
	if d.mirror != nil {
		if _, ok := d.mirror.Get(digest); ok {
			return true
		}
	}
	if d.history != nil && d.history.Contains(digest) {
		if d.mirror != nil {
			d.mirror.Add(digest, struct{}{})
		}
		return true
	}
	return false
}

func (d *Deduplicator) recordOnce(set map[string]struct{}, path string) {
	set[path] = struct{}{}
}

// AddToHistory commits digest to the history store; call only after the
// package containing it has transported successfully.
func (d *Deduplicator) AddToHistory(digest string) bool {
	if d.history == nil || digest == "" {
		return false
	}
	added := d.history.Add(digest)
	if added && d.mirror != nil {
		d.mirror.Add(digest, struct{}{})
	}
	return added
}

// AddBatchToHistory commits every digest, returning the number of
// genuinely new entries.
func (d *Deduplicator) AddBatchToHistory(digests []string) int {
	if d.history == nil {
		return 0
	}
	added := d.history.AddBatch(digests)
	if d.mirror != nil {
		for _, dg := range digests {
			d.mirror.Add(dg, struct{}{})
		}
	}
	return added
}

// SkippedHistoricalDuplicates returns the deduplicated set of source paths
// suppressed as historical duplicates.
func (d *Deduplicator) SkippedHistoricalDuplicates() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return keys(d.skippedHistoricalPaths)
}

// SkippedTaskDuplicates returns the deduplicated set of source paths
// suppressed as intra-task duplicates.
func (d *Deduplicator) SkippedTaskDuplicates() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return keys(d.skippedTaskPaths)
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
