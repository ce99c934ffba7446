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

// Package state implements the on-disk persisted state:
// the cross-run history digest store and the per-task result document,
// both written via a temp-then-rename atomic swap.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	liberr "github.com/sabouaram/fileingest/errors"
)

const (
	ErrorLoad CodeError = iota + liberr.MinPkgState
	ErrorSave
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgState) {
		panic(fmt.Errorf("error code collision with package fileingest/state"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgState, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorLoad:
		return "state: failed to load history file"
	case ErrorSave:
		return "state: failed to persist history file"
	}
	return liberr.NullMessage
}

// HistoryStore is the authoritative, full set of digests ever committed
// across runs. It is safe for concurrent use.
type HistoryStore struct {
	path string

	mu      sync.RWMutex
	digests map[string]struct{}
	dirty   bool

	autoSaveStop chan struct{}
	autoSaveOnce sync.Once
}

// LoadHistoryStore reads path as a JSON array of digests. A missing file
// yields an empty, successfully-loaded store; malformed contents yield
// an empty store with success=false, leaving the caller free to proceed
// with a clean slate.
func LoadHistoryStore(path string) (store *HistoryStore, success bool) {
	store = &HistoryStore{path: path, digests: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, true
	}
	if err != nil {
		return store, false
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return store, false
	}
	for _, d := range list {
		store.digests[d] = struct{}{}
	}
	return store, true
}

// Contains reports whether digest is already in the history set.
func (s *HistoryStore) Contains(digest string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.digests[digest]
	return ok
}

// Add inserts digest, marking the store dirty. Returns true if the digest
// was not already present.
func (s *HistoryStore) Add(digest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.digests[digest]; ok {
		return false
	}
	s.digests[digest] = struct{}{}
	s.dirty = true
	return true
}

// AddBatch inserts every digest, returning the count of genuinely new
// entries.
func (s *HistoryStore) AddBatch(digests []string) int {
	added := 0
	s.mu.Lock()
	for _, d := range digests {
		if _, ok := s.digests[d]; !ok {
			s.digests[d] = struct{}{}
			s.dirty = true
			added++
		}
	}
	s.mu.Unlock()
	return added
}

// Dirty reports whether the store has unsaved mutations.
func (s *HistoryStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Save persists the store atomically (temp-then-rename via natefinch/atomic)
// guarded by an advisory file lock so two runs sharing the same history
// file path serialise their writes.
func (s *HistoryStore) Save() liberr.Error {
	s.mu.Lock()
	list := make([]string, 0, len(s.digests))
	for d := range s.digests {
		list = append(list, d)
	}
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return ErrorSave.Error(nil)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return ErrorSave.Error(nil)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return ErrorSave.Error(nil)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return ErrorSave.Error(nil)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// StartAutoSave persists the store on the given interval whenever it is
// dirty. Call Close to stop it.
func (s *HistoryStore) StartAutoSave(interval time.Duration) {
	s.autoSaveStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if s.Dirty() {
					_ = s.Save()
				}
			case <-s.autoSaveStop:
				return
			}
		}
	}()
}

// Close stops the auto-save goroutine, if one was started.
func (s *HistoryStore) Close() {
	if s.autoSaveStop != nil {
		s.autoSaveOnce.Do(func() { close(s.autoSaveStop) })
	}
}
