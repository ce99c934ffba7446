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

// Package queuestate tracks one pipeline stage's membership: a FileRef
// lives in exactly one of waiting/processing/completed/failed at any
// time, plus a cross-stage retrying multi-set.
package queuestate

import (
	"sync"

	"github.com/sabouaram/fileingest/model"
)

// QueueState is one stage's FIFO-plus-sets bookkeeping. Safe for
// concurrent use; all mutation happens through Take/MarkCompleted/
// MarkFailed/Enqueue so the single-collection invariant always holds.
type QueueState struct {
	mu         sync.Mutex
	waiting    []*model.FileRef
	processing map[string]*model.FileRef
	completed  map[string]*model.FileRef
	failed     map[string]*model.FileRef
}

// New builds an empty QueueState.
func New() *QueueState {
	return &QueueState{
		processing: make(map[string]*model.FileRef),
		completed:  make(map[string]*model.FileRef),
		failed:     make(map[string]*model.FileRef),
	}
}

// Enqueue appends ref to waiting.
func (q *QueueState) Enqueue(ref *model.FileRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiting = append(q.waiting, ref)
}

// Take pops up to n refs from waiting into processing, returning them.
func (q *QueueState) Take(n int) []*model.FileRef {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.waiting) {
		n = len(q.waiting)
	}
	taken := q.waiting[:n]
	q.waiting = q.waiting[n:]

	for _, ref := range taken {
		q.processing[ref.Key()] = ref
	}
	return taken
}

// MarkCompleted moves ref from processing to completed.
func (q *QueueState) MarkCompleted(ref *model.FileRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, ref.Key())
	q.completed[ref.Key()] = ref
}

// MarkFailed moves ref from processing to failed.
func (q *QueueState) MarkFailed(ref *model.FileRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, ref.Key())
	q.failed[ref.Key()] = ref
}

// Requeue moves ref from processing (or failed) back onto waiting, for
// the retry queue's redelivery.
func (q *QueueState) Requeue(ref *model.FileRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, ref.Key())
	delete(q.failed, ref.Key())
	q.waiting = append(q.waiting, ref)
}

// Counts returns the four collection sizes backing Progress's per-stage
// counters.
type Counts struct {
	Waiting, Processing, Completed, Failed int
}

func (q *QueueState) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Counts{
		Waiting:    len(q.waiting),
		Processing: len(q.processing),
		Completed:  len(q.completed),
		Failed:     len(q.failed),
	}
}

// Idle reports whether this stage currently has no waiting and no
// in-flight work.
func (q *QueueState) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting) == 0 && len(q.processing) == 0
}

// RetryEntry keys a retrying item by path and the stage it failed from,
// so the same path retrying from two different stages is tracked
// independently.
type RetryEntry struct {
	Ref         *model.FileRef
	OriginStage string
}

// RetryQueue is the pipeline-global set of items awaiting redelivery.
type RetryQueue struct {
	mu      sync.Mutex
	entries []RetryEntry
}

// NewRetryQueue builds an empty RetryQueue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{}
}

// Add appends an entry awaiting redelivery to originStage.
func (r *RetryQueue) Add(ref *model.FileRef, originStage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, RetryEntry{Ref: ref, OriginStage: originStage})
}

// DrainStage removes and returns every entry queued for originStage.
func (r *RetryQueue) DrainStage(originStage string) []*model.FileRef {
	r.mu.Lock()
	defer r.mu.Unlock()

	var drained []*model.FileRef
	remaining := r.entries[:0]
	for _, e := range r.entries {
		if e.OriginStage == originStage {
			drained = append(drained, e.Ref)
		} else {
			remaining = append(remaining, e)
		}
	}
	r.entries = remaining
	return drained
}

// Len reports the number of entries still awaiting redelivery.
func (r *RetryQueue) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CountStage reports the number of entries currently parked for
// originStage, for the stage's live Retrying counter.
func (r *RetryQueue) CountStage(originStage string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.OriginStage == originStage {
			n++
		}
	}
	return n
}
