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

// Package stability implements the write-stability checker: it
// determines whether a file's bytes are momentarily quiescent before
// the pipeline commits to hashing them.
package stability

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Status is the outcome of one stability probe.
type Status string

const (
	StatusStable       Status = "STABLE"
	StatusLocked       Status = "LOCKED"
	StatusNotExist     Status = "NOT_EXIST"
	StatusWriting      Status = "WRITING"
	StatusSizeChanging Status = "SIZE_CHANGING"
	StatusCheckFailed  Status = "CHECK_FAILED"
)

// Profile tunes the stability probes: MaxRetries bounds the non-stable
// probes WaitForStability tolerates, RetryInterval spaces its probes, and
// LargeFileThreshold with SkipReadForLargeFiles selects the large-file
// probe. CheckInterval is carried but not read by the Checker; the number
// of consecutive stable probes required is fixed at two.
type Profile struct {
	MaxRetries            int
	RetryInterval         time.Duration
	CheckInterval         time.Duration
	LargeFileThreshold    int64
	SkipReadForLargeFiles bool
}

// DefaultProfile mirrors common defaults used across the component design
// table; callers override via config.WithStabilityProfile.
func DefaultProfile() Profile {
	return Profile{
		MaxRetries:            5,
		RetryInterval:         500 * time.Millisecond,
		CheckInterval:         200 * time.Millisecond,
		LargeFileThreshold:    100 * 1024 * 1024,
		SkipReadForLargeFiles: true,
	}
}

// Checker probes file stability, optionally short-circuiting the POSIX
// two-stat probe with an fsnotify watch.
type Checker struct {
	watcher *fsnotify.Watcher
}

// New builds a Checker. The fsnotify watcher is best-effort: if it cannot
// be installed (e.g. unsupported filesystem), the checker silently falls
// back to pure polling.
func New() *Checker {
	w, _ := fsnotify.NewWatcher()
	return &Checker{watcher: w}
}

func (c *Checker) Close() {
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
}

// IsStable runs one probe of path under profile.
func (c *Checker) IsStable(path string, profile Profile) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			status = StatusCheckFailed
		}
	}()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return StatusNotExist
	} else if err != nil {
		return StatusCheckFailed
	}

	if f, err := os.OpenFile(path, os.O_RDWR, 0); err != nil {
		if f2, err2 := os.Open(path); err2 != nil {
			return StatusLocked
		} else {
			_ = f2.Close()
		}
	} else {
		_ = f.Close()
	}

	if info.Size() > profile.LargeFileThreshold && profile.SkipReadForLargeFiles {
		return c.largeFileProbe(path, info, profile)
	}

	f, err := os.Open(path)
	if err != nil {
		return StatusLocked
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil && err.Error() != "EOF" {
		return StatusLocked
	}

	return StatusStable
}

func (c *Checker) largeFileProbe(path string, info os.FileInfo, profile Profile) Status {
	if runtime.GOOS == "windows" {
		tmp := path + ".tmp"
		if err := os.Rename(path, tmp); err != nil {
			return StatusLocked
		}
		_ = os.Rename(tmp, path)
		return StatusStable
	}

	// Fast path: if a watch on the containing directory is active and saw
	// no write event for this file since it was armed, skip straight to a
	// single stat instead of waiting out the full two-stat spacing.
	if c.watcher != nil {
		if !c.sawRecentWrite(path) {
			if _, err := os.Stat(path); err != nil {
				return StatusCheckFailed
			}
			return StatusStable
		}
	}

	size1, mtime1 := info.Size(), info.ModTime()
	time.Sleep(200 * time.Millisecond)

	info2, err := os.Stat(path)
	if err != nil {
		return StatusCheckFailed
	}

	if info2.Size() != size1 {
		return StatusSizeChanging
	}
	if !info2.ModTime().Equal(mtime1) {
		return StatusWriting
	}
	return StatusStable
}

// sawRecentWrite arms a watch on path's directory and drains any pending
// fsnotify events for path within a short window. Any error installing the
// watch is treated as "writes may be happening" so the caller falls back
// to the full stat-based probe (never skip the safe path silently).
func (c *Checker) sawRecentWrite(path string) bool {
	dir := filepath.Dir(path)
	if err := c.watcher.Add(dir); err != nil {
		return true
	}
	defer func() { _ = c.watcher.Remove(dir) }()

	timeout := time.After(50 * time.Millisecond)
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return true
			}
			if ev.Name == path && (ev.Op&(fsnotify.Write|fsnotify.Create)) != 0 {
				return true
			}
		case <-c.watcher.Errors:
			return true
		case <-timeout:
			return false
		}
	}
}

// WaitForStability repeatedly probes path, requiring two consecutive
// STABLE readings before returning true. It bails out and
// returns false after profile.MaxRetries non-stable attempts.
func (c *Checker) WaitForStability(path string, profile Profile) bool {
	consecutive := 0
	attempts := 0

	for attempts < profile.MaxRetries {
		status := c.IsStable(path, profile)
		if status == StatusStable {
			consecutive++
			if consecutive >= 2 {
				return true
			}
		} else {
			consecutive = 0
			attempts++
		}

		time.Sleep(profile.RetryInterval)
	}

	return false
}
