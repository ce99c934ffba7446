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

// TransportOutcome records one package's upload attempt, one entry per
// transportSummary item in the final Result.
type TransportOutcome struct {
	PackagePath  string `json:"packagePath"`
	RemotePath   string `json:"remotePath"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	MemberCount  int    `json:"memberCount"`
	AttemptCount int    `json:"attemptCount"`
}

// StageTiming aggregates one stage's total time spent in its worker
// callback and how many items it processed, for result.stageTimings.
type StageTiming struct {
	TotalDurationMs int64 `json:"totalDurationMs"`
	ItemCount       int   `json:"itemCount"`
}

// Result is the JSON serialisation of a completed run.
type Result struct {
	Success                     bool                   `json:"success"`
	ProcessedFiles              []string               `json:"processedFiles"`
	FailedItems                 []Failure              `json:"failedItems"`
	PackagePaths                []string               `json:"packagePaths"`
	TransportSummary            []TransportOutcome     `json:"transportSummary"`
	SkippedHistoricalDuplicates []string               `json:"skippedHistoricalDuplicates"`
	SkippedTaskDuplicates       []string               `json:"skippedTaskDuplicates"`
	LogFilePath                 string                 `json:"logFilePath"`
	TaskID                      string                 `json:"taskId"`
	ScanID                      string                 `json:"scanId"`
	ResultFilePath              string                 `json:"resultFilePath"`
	StartTime                   time.Time              `json:"startTime"`
	EndTime                     time.Time              `json:"endTime"`
	ElapsedTimeMs               int64                  `json:"elapsedTimeMs"`
	StageTimings                map[string]StageTiming `json:"stageTimings"`
}
