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

// Package pipeline wires the fixed topology the coordinator runs:
//
//	scan-out -> matched -> {fileStability, archiveStability} -> hash ->
//	packaging -> transport -> done
//
// with a single multi-stage retry queue and per-stage bounded worker
// pools, grounded on the teacher's golang.org/x/sync (semaphore, errgroup)
// worker-pool idiom.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sabouaram/fileingest/archivefmt"
	"github.com/sabouaram/fileingest/config"
	"github.com/sabouaram/fileingest/contenthash"
	"github.com/sabouaram/fileingest/dedup"
	liberr "github.com/sabouaram/fileingest/errors"
	"github.com/sabouaram/fileingest/event"
	"github.com/sabouaram/fileingest/logger"
	"github.com/sabouaram/fileingest/matchrule"
	"github.com/sabouaram/fileingest/model"
	"github.com/sabouaram/fileingest/packager"
	"github.com/sabouaram/fileingest/queuestate"
	"github.com/sabouaram/fileingest/scanner"
	"github.com/sabouaram/fileingest/stability"
	"github.com/sabouaram/fileingest/state"
	"github.com/sabouaram/fileingest/transport"
	"github.com/sabouaram/fileingest/transport/ftp"
)

const (
	ErrorConfig CodeError = iota + liberr.MinPkgPipeline
	ErrorUnsupportedProtocol
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgPipeline) {
		panic(fmt.Errorf("error code collision with package fileingest/pipeline"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgPipeline, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorConfig:
		return "pipeline: invalid configuration"
	case ErrorUnsupportedProtocol:
		return "pipeline: no transport adapter registered for this protocol"
	}
	return liberr.NullMessage
}

const (
	stageFileStability    = "fileStability"
	stageArchiveStability = "archiveStability"
	stageHash             = "hash"
	stagePackaging        = "packaging"
	stageTransport        = "transport"
)

// Coordinator runs one end-to-end ingest pass.
type Coordinator struct {
	cfg *config.Config

	matcher *matchrule.Matcher
	scan    *scanner.Scanner

	checker *stability.Checker
	hasher  *contenthash.Hasher
	dedup   *dedup.Deduplicator
	pack    *packager.Packager
	xport   transport.Transport

	sink event.Sink
	log  *logger.Logger

	fileStabilityQ    *queuestate.QueueState
	archiveStabilityQ *queuestate.QueueState
	hashQ             *queuestate.QueueState
	packagingQ        *queuestate.QueueState
	transportQ        *queuestate.QueueState
	retry             *queuestate.RetryQueue

	packagingDone atomic.Bool

	mu              sync.Mutex
	processedFiles  []string
	failedItems     []model.Failure
	packagePaths    []string
	transportLog    []model.TransportOutcome
	pendingPackages map[string]*model.Package
	stageTimings    map[string]model.StageTiming

	scanID string
}

// New builds a Coordinator from a validated Config.
func New(cfg *config.Config, scanID string) (*Coordinator, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrorConfig.Error(err)
	}

	matcher, mErr := matchrule.New(cfg.Rules)
	if mErr != nil {
		return nil, ErrorConfig.Error(mErr)
	}

	maxNesting := 1
	if cfg.ScanNestedArchives {
		maxNesting = cfg.MaxNestedLevel
	}
	registry := archivefmt.DefaultRegistry()
	enum := archivefmt.NewEnumerator(registry, maxNesting)

	history, _ := state.LoadHistoryStore(cfg.Deduplicator.HistoryFilePath)
	if cfg.Deduplicator.Enabled && cfg.Deduplicator.UseHistorical && cfg.Deduplicator.AutoSaveInterval > 0 {
		history.StartAutoSave(cfg.Deduplicator.AutoSaveInterval)
	}

	c := &Coordinator{
		cfg:     cfg,
		matcher: matcher,
		checker: stability.New(),
		hasher:  contenthash.New(nil),
		dedup:   dedup.New(history, cfg.Deduplicator.UseHistorical, cfg.Deduplicator.UseTask),

		fileStabilityQ:    queuestate.New(),
		archiveStabilityQ: queuestate.New(),
		hashQ:             queuestate.New(),
		packagingQ:        queuestate.New(),
		transportQ:        queuestate.New(),
		retry:             queuestate.NewRetryQueue(),

		pendingPackages: make(map[string]*model.Package),
		stageTimings:    make(map[string]model.StageTiming),

		scanID: scanID,
	}

	c.pack = packager.New(packager.Options{
		OutputDir:         cfg.OutputDir,
		NamePattern:       cfg.PackageNamePattern,
		Trigger:           cfg.PackagingTrigger,
		MetadataEnabled:   true,
		ChecksumAlgorithm: "sha256",
		TaskID:            cfg.TaskID,
		ScanID:            scanID,
	}, newFsSource(registry))

	c.scan = scanner.New(matcher, enum, scanner.Options{
		Depth:              cfg.Depth,
		SkipDirs:           cfg.SkipDirs,
		MaxFileSize:        cfg.MaxFileSize,
		ScanNestedArchives: cfg.ScanNestedArchives,
		MaxNestedLevel:     cfg.MaxNestedLevel,
	}, cfg.OutputDir, cfg.ResultsDir)

	if cfg.Transport.Enabled {
		switch cfg.Transport.Protocol {
		case config.ProtocolFTP, config.ProtocolFTPS:
			ftpCfg := ftp.Config{
				Hostname: fmt.Sprintf("%s:%d", cfg.Transport.Host, cfg.Transport.Port),
				Login:    cfg.Transport.Username,
				Password: cfg.Transport.Password,
			}
			if cfg.Transport.Protocol == config.ProtocolFTPS {
				ftpCfg.ForceTLS = true
			}
			c.xport = ftp.New(ftpCfg)
		default:
			return nil, ErrorUnsupportedProtocol.Error(nil)
		}
	}

	c.sink = event.Sink{OnProgress: cfg.OnProgress, OnFailure: cfg.OnFailure}

	c.log = logger.New(logrus.InfoLevel)
	if cfg.LogFilePath != "" {
		if herr := c.log.AddFileHook(cfg.LogFilePath); herr != nil {
			c.log.Entry().Field("path", cfg.LogFilePath).Error(herr).Warn("could not attach log file hook")
		}
	}

	return c, nil
}

// recordStageTiming folds one worker's elapsed time into stage's running
// total and item count, feeding result.StageTimings.
func (c *Coordinator) recordStageTiming(stage string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.stageTimings[stage]
	t.TotalDurationMs += d.Milliseconds()
	t.ItemCount++
	c.stageTimings[stage] = t
}

func (c *Coordinator) recordFailure(f model.Failure) {
	c.mu.Lock()
	c.failedItems = append(c.failedItems, f)
	c.mu.Unlock()
	c.log.Entry().Field("kind", f.Kind).Field("path", f.Path).Error(f.Err).Warn("item failed")
	c.sink.Emit(nil, &f)
}

func (c *Coordinator) emitProgress() {
	c.sink.Emit(&event.Progress{
		Stages: map[string]event.StageCounts{
			stageFileStability:    c.countsOf(c.fileStabilityQ, stageFileStability),
			stageArchiveStability: c.countsOf(c.archiveStabilityQ, stageArchiveStability),
			stageHash:             c.countsOf(c.hashQ, stageHash),
			stagePackaging:        c.countsOf(c.packagingQ, stagePackaging),
			stageTransport:        c.countsOf(c.transportQ, stageTransport),
		},
	}, nil)
}

// countsOf reports q's four collection sizes plus the number of items
// currently parked on the shared retry queue for stage, so Retrying never
// sits frozen at zero while a transient failure awaits redelivery.
func (c *Coordinator) countsOf(q *queuestate.QueueState, stage string) event.StageCounts {
	counts := q.Counts()
	retrying := c.retry.CountStage(stage)
	return event.StageCounts{
		Waiting:    counts.Waiting,
		Processing: counts.Processing,
		Completed:  counts.Completed,
		Failed:     counts.Failed,
		Retrying:   retrying,
		Total:      counts.Waiting + counts.Processing + counts.Completed + counts.Failed + retrying,
	}
}

// Run executes one complete scan-through-transport pass and returns the
// run's Result.
func (c *Coordinator) Run(ctx context.Context) (*model.Result, liberr.Error) {
	start := time.Now()
	c.log.Entry().Field("taskId", c.cfg.TaskID).Field("scanId", c.scanID).Info("pipeline run starting")
	sem := newStageSemaphores(c.cfg.Queue)

	var scanWG sync.WaitGroup
	scanWG.Add(1)
	go func() {
		defer scanWG.Done()
		c.runScan(ctx)
	}()

	// The two stability stages only ever receive input from the scanner,
	// so they can run and drain concurrently with each other; the hash
	// stage only starts consuming once both have stopped producing into
	// it, which keeps its own idle check race-free: the coordinator is the
	// only component that mutates queue membership.
	var stabilityWG sync.WaitGroup
	stabilityWG.Add(1)
	go func() {
		defer stabilityWG.Done()
		c.runStageLoop(ctx, stageFileStability, c.fileStabilityQ, sem.fileStability, c.processFileStability)
	}()
	stabilityWG.Add(1)
	go func() {
		defer stabilityWG.Done()
		c.runStageLoop(ctx, stageArchiveStability, c.archiveStabilityQ, sem.archiveStability, c.processArchiveStability)
	}()

	var transportWG sync.WaitGroup
	if c.xport != nil {
		transportWG.Add(1)
		go func() {
			defer transportWG.Done()
			c.runTransportLoop(ctx, sem.transport)
		}()
	}

	// packaging runs as its own single-worker stage, fed by the hash stage,
	// so members are admitted to the packager strictly in the order the
	// coordinator enqueued them rather than in whatever order up to
	// Queue.Hash concurrent hash workers happen to finish.
	// The loop is re-entered whenever it goes idle before the hash stage
	// has finished feeding it.
	var hashDone atomic.Bool
	var packagingWG sync.WaitGroup
	packagingWG.Add(1)
	go func() {
		defer packagingWG.Done()
		for !(hashDone.Load() && c.packagingQ.Idle()) {
			c.runStageLoop(ctx, stagePackaging, c.packagingQ, sem.packaging, c.processPackaging)
		}
	}()

	scanWG.Wait()
	stabilityWG.Wait()
	c.runStageLoop(ctx, stageHash, c.hashQ, sem.hash, c.processHash)
	hashDone.Store(true)
	packagingWG.Wait()

	if pkg, err := c.pack.Flush(); err == nil && pkg != nil && len(pkg.MemberRefs) > 0 {
		c.sealPackage(pkg)
	}
	c.packagingDone.Store(true)

	if c.xport != nil {
		for !c.transportQ.Idle() {
			time.Sleep(20 * time.Millisecond)
		}
	}
	transportWG.Wait()

	c.checker.Close()

	end := time.Now()
	result := &model.Result{
		Success:                     len(c.failedItems) == 0,
		ProcessedFiles:              c.processedFiles,
		FailedItems:                 c.failedItems,
		PackagePaths:                c.packagePaths,
		TransportSummary:            c.transportLog,
		SkippedHistoricalDuplicates: c.dedup.SkippedHistoricalDuplicates(),
		SkippedTaskDuplicates:       c.dedup.SkippedTaskDuplicates(),
		LogFilePath:                 c.cfg.LogFilePath,
		TaskID:                      c.cfg.TaskID,
		ScanID:                      c.scanID,
		StartTime:                   start,
		EndTime:                     end,
		ElapsedTimeMs:               end.Sub(start).Milliseconds(),
		StageTimings:                c.stageTimings,
	}
	result.ResultFilePath = state.ResultPath(c.cfg.ResultsDir, c.cfg.TaskID, c.scanID)

	if serr := state.SaveResult(result.ResultFilePath, result); serr != nil {
		c.recordFailure(model.NewFailure(model.KindScanError, result.ResultFilePath, fmt.Errorf("saving result: %w", serr)))
	}

	c.log.Entry().
		Field("processed", len(result.ProcessedFiles)).
		Field("failed", len(result.FailedItems)).
		Field("elapsedMs", result.ElapsedTimeMs).
		Info("pipeline run finished")

	return result, nil
}

// Drain waits (bounded by ctx) for every in-flight stage to reach idle;
// an additive graceful-shutdown hook beyond the fixed-topology core.
func (c *Coordinator) Drain(ctx context.Context) {
	for {
		if c.allIdle() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (c *Coordinator) allIdle() bool {
	return c.fileStabilityQ.Idle() && c.archiveStabilityQ.Idle() && c.hashQ.Idle() &&
		c.packagingQ.Idle() && c.transportQ.Idle() && c.retry.Len() == 0
}

type stageSemaphores struct {
	fileStability    *semaphore.Weighted
	archiveStability *semaphore.Weighted
	hash             *semaphore.Weighted
	packaging        *semaphore.Weighted
	transport        *semaphore.Weighted
}

func newStageSemaphores(q config.QueueConcurrency) stageSemaphores {
	clamp := func(n, def int) int64 {
		if n <= 0 {
			n = def
		}
		return int64(n)
	}
	return stageSemaphores{
		fileStability:    semaphore.NewWeighted(clamp(q.FileStability, 5)),
		archiveStability: semaphore.NewWeighted(clamp(q.ArchiveStability, 3)),
		hash:             semaphore.NewWeighted(clamp(q.Hash, 5)),
		packaging:        semaphore.NewWeighted(clamp(q.Packaging, 1)),
		transport:        semaphore.NewWeighted(clamp(q.Transport, 2)),
	}
}

// runScan performs the concurrent per-root walk (one errgroup goroutine
// per root) and
// pushes matched refs into the appropriate first-stage queue. Root-level
// scan errors from every goroutine are aggregated (not just the first, the
// way a bare errgroup.Wait() would report) so a failure on one root never
// hides a failure on another.
func (c *Coordinator) runScan(ctx context.Context) {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		merr *multierror.Error
	)
	for _, root := range c.cfg.RootDirs {
		root := root
		g.Go(func() error {
			if err := c.scan.Scan([]string{root}, &scanSink{c: c}); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("root %s: %w", root, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if merr != nil {
		for _, rootErr := range merr.Errors {
			c.recordFailure(model.NewFailure(model.KindDirectoryAccess, "", rootErr))
		}
	}
}

type scanSink struct{ c *Coordinator }

func (s *scanSink) Matched(ref *model.FileRef) {
	if ref.Origin == model.OriginArchive {
		s.c.archiveStabilityQ.Enqueue(ref)
	} else {
		s.c.fileStabilityQ.Enqueue(ref)
	}
	s.c.emitProgress()
}

func (s *scanSink) Failed(f model.Failure) {
	s.c.recordFailure(f)
}

func (s *scanSink) Progress(scanner.ProgressEvent) {
	s.c.emitProgress()
}

// runStageLoop is the generic bounded-concurrency consumer for one queue:
// take one ref, run work under the stage semaphore, mark the outcome.
// The coordinator is the only component that mutates queue membership;
// workers call take/markCompleted/markFailed.
func (c *Coordinator) runStageLoop(ctx context.Context, stage string, q *queuestate.QueueState, sem *semaphore.Weighted, work func(ctx context.Context, ref *model.FileRef) bool) {
	var wg sync.WaitGroup
	idleRounds := 0
	for {
		refs := q.Take(1)
		if len(refs) == 0 {
			drained := c.retry.DrainStage(stage)
			for _, ref := range drained {
				q.Requeue(ref)
			}
			if len(drained) == 0 {
				idleRounds++
				if idleRounds > 3 && q.Idle() {
					wg.Wait()
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		idleRounds = 0

		ref := refs[0]
		if err := sem.Acquire(ctx, 1); err != nil {
			q.MarkFailed(ref)
			continue
		}
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()
			workStart := time.Now()
			ok := work(ctx, ref)
			c.recordStageTiming(stage, time.Since(workStart))
			if ok {
				q.MarkCompleted(ref)
				c.log.Entry().Field("stage", stage).Field("path", ref.Key()).Debug("stage completed")
			} else {
				q.MarkFailed(ref)
				c.log.Entry().Field("stage", stage).Field("path", ref.Key()).Debug("stage failed or retrying")
			}
			c.emitProgress()
		}()
	}
}

// maxStageRetries bounds the pipeline-level retry queue: a transient
// failure re-enters the retry queue up to maxStageRetries times, then
// becomes terminal. WaitForStability already runs its own retry loop
// internally, so this only covers genuinely transient failures that
// slip past that: a still-locked file on the retry redelivery, a read
// error.
const maxStageRetries = 3

func attemptKey(stage string) string { return "attempts:" + stage }

func attemptCount(ref *model.FileRef, stage string) int {
	if ref.Metadata == nil {
		return 0
	}
	n, _ := strconv.Atoi(ref.Metadata[attemptKey(stage)])
	return n
}

func bumpAttempt(ref *model.FileRef, stage string) int {
	if ref.Metadata == nil {
		ref.Metadata = make(map[string]string)
	}
	n := attemptCount(ref, stage) + 1
	ref.Metadata[attemptKey(stage)] = strconv.Itoa(n)
	return n
}

func (c *Coordinator) processFileStability(ctx context.Context, ref *model.FileRef) bool {
	if !c.checker.WaitForStability(ref.SourcePath, c.cfg.Stability) {
		c.retryOrFail(ref, stageFileStability, model.KindStability, fmt.Errorf("file did not stabilise"))
		return false
	}
	c.hashQ.Enqueue(ref)
	return true
}

func (c *Coordinator) processArchiveStability(ctx context.Context, ref *model.FileRef) bool {
	if !c.checker.WaitForStability(ref.ArchivePath, c.cfg.Stability) {
		c.retryOrFail(ref, stageArchiveStability, model.KindArchiveStability, fmt.Errorf("archive did not stabilise"))
		return false
	}
	c.hashQ.Enqueue(ref)
	return true
}

// retryOrFail either parks ref on the pipeline-global retry queue (leaving
// it uncounted against failedItems until attempts are exhausted) or
// records it as a terminal Failure - never both, so a FileRef is never
// double-booked across processedFiles/failedItems.
func (c *Coordinator) retryOrFail(ref *model.FileRef, stage string, kind model.FailureKind, cause error) {
	if bumpAttempt(ref, stage) <= maxStageRetries {
		c.retry.Add(ref, stage)
		return
	}
	c.recordFailure(model.NewFailure(kind, ref.Key(), cause))
}

func (c *Coordinator) processHash(ctx context.Context, ref *model.FileRef) bool {
	if !c.cfg.ContentDigest {
		return c.enqueuePackaging(ref)
	}

	path := ref.SourcePath
	if ref.Origin == model.OriginArchive {
		path = ref.ArchivePath
	}

	digest, err := c.hasher.Hash(path, nil)
	if err != nil {
		c.retryOrFail(ref, stageHash, model.KindHash, err)
		return false
	}
	ref.Digest = digest

	if !c.cfg.Deduplicator.Enabled {
		return c.enqueuePackaging(ref)
	}

	switch c.dedup.Check(ref).Kind {
	case dedup.HistoricalDuplicate, dedup.TaskDuplicate:
		return true
	default:
		return c.enqueuePackaging(ref)
	}
}

// enqueuePackaging hands ref off to the single-worker packaging stage
// instead of calling pack.Add directly from the hash stage's own worker
// pool, so members are admitted to the packager in the order the
// coordinator enqueued them, not in whatever order concurrent hash
// workers happen to finish.
func (c *Coordinator) enqueuePackaging(ref *model.FileRef) bool {
	c.packagingQ.Enqueue(ref)
	return true
}

// processPackaging is the packaging stage's sole worker callback; its
// semaphore is always sized to 1 (see newStageSemaphores), so calls never
// overlap and admission order matches enqueue order.
func (c *Coordinator) processPackaging(ctx context.Context, ref *model.FileRef) bool {
	return c.admitToPackager(ref)
}

func (c *Coordinator) admitToPackager(ref *model.FileRef) bool {
	pkg, err := c.pack.Add(ref)
	if err != nil {
		c.recordFailure(model.NewFailure(model.KindPackaging, ref.Key(), err))
		return false
	}

	c.mu.Lock()
	c.processedFiles = append(c.processedFiles, ref.Key())
	c.mu.Unlock()

	if pkg != nil {
		c.sealPackage(pkg)
	}
	return true
}

func (c *Coordinator) sealPackage(pkg *model.Package) {
	c.mu.Lock()
	c.packagePaths = append(c.packagePaths, pkg.Path)
	c.mu.Unlock()

	if c.xport == nil {
		c.commitDigests(pkg)
		return
	}

	c.mu.Lock()
	c.pendingPackages[pkg.Path] = pkg
	c.mu.Unlock()
	c.transportQ.Enqueue(&model.FileRef{SourcePath: pkg.Path, DisplayName: filepath.Base(pkg.Path)})
}

func (c *Coordinator) commitDigests(pkg *model.Package) {
	if !c.cfg.Deduplicator.Enabled {
		return
	}
	digests := make([]string, 0, len(pkg.MemberRefs))
	for _, m := range pkg.MemberRefs {
		if m.Digest != "" {
			digests = append(digests, m.Digest)
		}
	}
	c.dedup.AddBatchToHistory(digests)
}

func (c *Coordinator) runTransportLoop(ctx context.Context, sem *semaphore.Weighted) {
	for {
		refs := c.transportQ.Take(1)
		if len(refs) == 0 {
			if c.packagingDone.Load() && c.transportQ.Idle() {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		ref := refs[0]
		if err := sem.Acquire(ctx, 1); err != nil {
			c.transportQ.MarkFailed(ref)
			continue
		}
		go func() {
			defer sem.Release(1)
			workStart := time.Now()
			c.uploadOne(ctx, ref)
			c.recordStageTiming(stageTransport, time.Since(workStart))
			c.transportQ.MarkCompleted(ref)
		}()
	}
}

func (c *Coordinator) uploadOne(ctx context.Context, ref *model.FileRef) {
	c.mu.Lock()
	pkg, ok := c.pendingPackages[ref.SourcePath]
	c.mu.Unlock()
	if !ok {
		return
	}

	remote := filepath.ToSlash(filepath.Join(c.cfg.Transport.RemotePath, filepath.Base(pkg.Path)))

	if err := c.xport.Connect(ctx); err != nil {
		c.recordTransportFailure(pkg, remote, err)
		return
	}
	defer func() { _ = c.xport.Disconnect() }()

	res := transport.UploadWithRetry(ctx, c.xport, pkg.Path, remote, transport.RetryOptions{
		RetryCount: 3,
		Timeout:    30 * time.Second,
		RetryDelay: time.Second,
		OnAttemptFailed: func(attempt int, err error) {
			c.recordFailure(model.NewFailure(model.KindTransport, pkg.Path, fmt.Errorf("attempt %d: %w", attempt+1, err)))
		},
	})

	c.mu.Lock()
	c.transportLog = append(c.transportLog, model.TransportOutcome{
		PackagePath: pkg.Path,
		RemotePath:  remote,
		Success:     res.Success,
		MemberCount: len(pkg.MemberRefs),
	})
	c.mu.Unlock()

	if res.Success {
		c.commitDigests(pkg)
	} else {
		c.recordFailure(model.NewFailure(model.KindTransport, pkg.Path, res.Err))
	}
}

func (c *Coordinator) recordTransportFailure(pkg *model.Package, remote string, err error) {
	c.mu.Lock()
	c.transportLog = append(c.transportLog, model.TransportOutcome{
		PackagePath: pkg.Path,
		RemotePath:  remote,
		Success:     false,
		Error:       err.Error(),
		MemberCount: len(pkg.MemberRefs),
	})
	c.mu.Unlock()
	c.recordFailure(model.NewFailure(model.KindTransport, pkg.Path, err))
}
