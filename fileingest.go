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

// Package fileingest is the top-level entrypoint: build a Config, call
// ScanAndTransport, get back the run's Result. Everything else lives in
// the subpackages this wires together.
package fileingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/sabouaram/fileingest/config"
	liberr "github.com/sabouaram/fileingest/errors"
	"github.com/sabouaram/fileingest/model"
	"github.com/sabouaram/fileingest/pipeline"
)

// ScanAndTransport runs one complete scan-through-transport pass against
// cfg and returns the run's Result. A fresh scan ID is minted per call, so
// the same Config can be reused across repeated calls (e.g. on a timer)
// without colliding result documents.
func ScanAndTransport(ctx context.Context, cfg *config.Config) (*model.Result, liberr.Error) {
	coord, err := pipeline.New(cfg, uuid.NewString())
	if err != nil {
		return nil, err
	}
	return coord.Run(ctx)
}
