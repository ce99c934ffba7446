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

package event

import (
	"sync"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var stageLabel = color.New(color.FgCyan).SprintFunc()

// Renderer is an optional console progress bar fed from ProgressFunc
// callbacks; CLI front-ends are out of the core's scope, but a
// renderer is still a plugin into the same Sink any caller can use.
type Renderer struct {
	progress *mpb.Progress

	mu   sync.Mutex
	bars map[string]*mpb.Bar
}

// NewRenderer builds a Renderer backed by a fresh mpb.Progress container.
func NewRenderer() *Renderer {
	return &Renderer{
		progress: mpb.New(mpb.WithWidth(40)),
		bars:     make(map[string]*mpb.Bar),
	}
}

// OnProgress implements ProgressFunc, updating one bar per named stage.
func (r *Renderer) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, counts := range p.Stages {
		bar, ok := r.bars[name]
		if !ok {
			if counts.Total <= 0 {
				continue
			}
			bar = r.progress.AddBar(int64(counts.Total),
				mpb.PrependDecorators(decor.Name(stageLabel(name))),
				mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
			)
			r.bars[name] = bar
		}
		bar.SetCurrent(int64(counts.Completed + counts.Failed))
	}
}

// Wait blocks until every bar the renderer created has completed.
func (r *Renderer) Wait() {
	r.progress.Wait()
}
