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

package state

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	liberr "github.com/sabouaram/fileingest/errors"
	"github.com/sabouaram/fileingest/model"
)

// ResultPath builds the "<resultsDir>/<taskId>-<scanId>.json" path for
// the result document.
func ResultPath(resultsDir, taskID, scanID string) string {
	return filepath.Join(resultsDir, taskID+"-"+scanID+".json")
}

// SaveResult serialises result to path atomically (temp-then-rename),
// matching the write discipline HistoryStore.Save uses.
func SaveResult(path string, result *model.Result) liberr.Error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ErrorSave.Error(nil)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return ErrorSave.Error(nil)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return ErrorSave.Error(nil)
	}
	return nil
}

// LoadResult reads and decodes a previously saved result document.
func LoadResult(path string) (*model.Result, liberr.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrorLoad.Error(nil)
	}

	var result model.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, ErrorLoad.Error(nil)
	}
	return &result, nil
}
