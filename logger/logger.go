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

// Package logger provides a small fluent wrapper over logrus used by every
// pipeline stage to report stage transitions, retries and failures.
package logger

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// Logger is the package-facing handle; every fileingest package takes one
// as a constructor argument instead of reaching for a package-level global.
type Logger struct {
	l *logrus.Logger
}

// New builds a Logger at the given level, logging to stderr in a
// colourised text format when attached to a terminal.
func New(level logrus.Level) *Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(colorable.NewColorableStderr())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{l: l}
}

// AddFileHook appends every record, newline-delimited, to path. This is the
// mechanism that produces the run's persisted log file.
func (lg *Logger) AddFileHook(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	lg.l.AddHook(&fileHook{w: f})
	return nil
}

// Entry starts a fluent, chainable log entry.
func (lg *Logger) Entry() *Entry {
	return &Entry{e: logrus.NewEntry(lg.l)}
}

// Entry wraps a logrus.Entry with chain-returning setters; nothing is
// written until a terminal call (Debug, Info, Warn, Err).
type Entry struct {
	e     *logrus.Entry
	errs  []error
}

func (e *Entry) Field(k string, v interface{}) *Entry {
	e.e = e.e.WithField(k, v)
	return e
}

func (e *Entry) Fields(f map[string]interface{}) *Entry {
	e.e = e.e.WithFields(f)
	return e
}

func (e *Entry) Error(errs ...error) *Entry {
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
	return e
}

func (e *Entry) flush() *logrus.Entry {
	if len(e.errs) == 1 {
		return e.e.WithError(e.errs[0])
	} else if len(e.errs) > 1 {
		msgs := make([]string, 0, len(e.errs))
		for _, er := range e.errs {
			msgs = append(msgs, er.Error())
		}
		return e.e.WithField("errors", msgs)
	}
	return e.e
}

func (e *Entry) Debug(msg string) { e.flush().Debug(msg) }
func (e *Entry) Info(msg string)  { e.flush().Info(msg) }
func (e *Entry) Warn(msg string)  { e.flush().Warn(msg) }
func (e *Entry) Err(msg string)   { e.flush().Error(msg) }

// fileHook writes every log record to an append-only file, prefixed by an
// ISO-8601 timestamp, one record per line.
type fileHook struct {
	w io.Writer
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := (&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}).Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}
