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

// Package config builds the top-level run configuration: a
// required-args constructor plus chainable With* setters for every
// optional field, validated with struct tags the way ftpclient.Config is
//.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	libval "github.com/go-playground/validator/v10"

	liberr "github.com/sabouaram/fileingest/errors"
	"github.com/sabouaram/fileingest/event"
	"github.com/sabouaram/fileingest/matchrule"
	"github.com/sabouaram/fileingest/packager"
	"github.com/sabouaram/fileingest/stability"
)

const (
	ErrorValidation CodeError = iota + liberr.MinPkgConfig
	ErrorEmptyRootDirs
	ErrorInvalidRules
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgConfig) {
		panic(fmt.Errorf("error code collision with package fileingest/config"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgConfig, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorValidation:
		return "config: struct validation failed"
	case ErrorEmptyRootDirs:
		return "config: at least one root directory is required"
	case ErrorInvalidRules:
		return "config: invalid match rules"
	}
	return liberr.NullMessage
}

// TransportProtocol enumerates the concrete protocols a run may target.
type TransportProtocol string

const (
	ProtocolFTP  TransportProtocol = "ftp"
	ProtocolFTPS TransportProtocol = "ftps"
	ProtocolSFTP TransportProtocol = "sftp"
)

// TransportConfig is the destination endpoint.
type TransportConfig struct {
	Protocol   TransportProtocol `toml:"protocol" validate:"required,oneof=ftp ftps sftp"`
	Host       string            `toml:"host" validate:"required"`
	Port       int               `toml:"port" validate:"required"`
	Username   string            `toml:"username"`
	Password   string            `toml:"password"`
	RemotePath string            `toml:"remote_path"`
	Enabled    bool              `toml:"enabled"`
}

// NewTransportConfig builds a TransportConfig with Enabled defaulted to
// true.
func NewTransportConfig(protocol TransportProtocol, host string, port int, username, password, remotePath string) TransportConfig {
	return TransportConfig{
		Protocol:   protocol,
		Host:       host,
		Port:       port,
		Username:   username,
		Password:   password,
		RemotePath: remotePath,
		Enabled:    true,
	}
}

// QueueConcurrency holds the per-stage worker pool sizes.
type QueueConcurrency struct {
	FileStability    int
	ArchiveStability int
	Hash             int
	Packaging        int
	Transport        int
}

// DefaultQueueConcurrency returns the default per-stage worker pool
// sizes.
func DefaultQueueConcurrency() QueueConcurrency {
	return QueueConcurrency{
		FileStability:    5,
		ArchiveStability: 3,
		Hash:             5,
		Packaging:        1,
		Transport:        2,
	}
}

// DeduplicatorOptions controls dedup behaviour.
type DeduplicatorOptions struct {
	Enabled          bool
	UseHistorical    bool
	UseTask          bool
	HistoryFilePath  string
	AutoSaveInterval time.Duration
}

// DefaultDeduplicatorOptions returns the default dedup behaviour.
func DefaultDeduplicatorOptions() DeduplicatorOptions {
	return DeduplicatorOptions{
		Enabled:          true,
		UseHistorical:    true,
		UseTask:          true,
		HistoryFilePath:  "./historical-uploads.json",
		AutoSaveInterval: 5 * time.Minute,
	}
}

// Config is the full run configuration. Tagged for
// decoding from a TOML file (LoadTOML) alongside the required-args
// constructor; callback fields cannot be expressed in a file and are
// left unset by LoadTOML (toml:"-").
type Config struct {
	RootDirs  []string             `toml:"root_dirs" validate:"required,min=1"`
	Rules     []matchrule.RuleSpec `toml:"rules" validate:"required,min=1"`
	Transport TransportConfig      `toml:"transport" validate:"required"`
	TaskID    string               `toml:"task_id" validate:"required"`

	OutputDir          string              `toml:"output_dir"`
	ResultsDir         string              `toml:"results_dir"`
	PackageNamePattern string              `toml:"package_name_pattern"`
	MaxFileSize        int64               `toml:"max_file_size"`
	SkipDirs           []string            `toml:"skip_dirs"`
	Depth              int                 `toml:"depth"`
	ScanNestedArchives bool                `toml:"scan_nested_archives"`
	MaxNestedLevel     int                 `toml:"max_nested_level"`
	PackagingTrigger   packager.Trigger    `toml:"packaging_trigger"`
	LogFilePath        string              `toml:"log_file_path"`
	ContentDigest      bool                `toml:"content_digest"`
	Queue              QueueConcurrency    `toml:"queue"`
	Stability          stability.Profile   `toml:"stability"`
	Deduplicator       DeduplicatorOptions `toml:"deduplicator"`

	OnProgress event.ProgressFunc `toml:"-"`
	OnFailure  event.FailureFunc  `toml:"-"`
}

// New builds a Config from the required arguments, defaulting every
// optional field.
func New(rootDirs []string, rules []matchrule.RuleSpec, transport TransportConfig, taskID string) *Config {
	return &Config{
		RootDirs:  rootDirs,
		Rules:     rules,
		Transport: transport,
		TaskID:    taskID,

		OutputDir:          "./temp/packages",
		ResultsDir:         "./results",
		PackageNamePattern: "package_{taskId}_{index}",
		MaxFileSize:        500 * 1024 * 1024,
		Depth:              -1,
		ScanNestedArchives: true,
		MaxNestedLevel:     5,
		PackagingTrigger:   packager.Trigger{MaxFiles: 500, MaxSizeMB: 2048},
		LogFilePath:        fmt.Sprintf("./scan_transport_log_%s.log", taskID),
		ContentDigest:      true,
		Queue:              DefaultQueueConcurrency(),
		Stability:          stability.DefaultProfile(),
		Deduplicator:       DefaultDeduplicatorOptions(),
	}
}

func (c *Config) WithOutputDir(dir string) *Config { c.OutputDir = dir; return c }

func (c *Config) WithResultsDir(dir string) *Config { c.ResultsDir = dir; return c }

func (c *Config) WithPackageNamePattern(pattern string) *Config {
	c.PackageNamePattern = pattern
	return c
}

func (c *Config) WithMaxFileSize(bytes int64) *Config { c.MaxFileSize = bytes; return c }

func (c *Config) WithSkipDirs(dirs []string) *Config { c.SkipDirs = dirs; return c }

func (c *Config) WithDepth(depth int) *Config { c.Depth = depth; return c }

func (c *Config) WithNestedArchives(enabled bool, maxLevel int) *Config {
	c.ScanNestedArchives = enabled
	c.MaxNestedLevel = maxLevel
	return c
}

func (c *Config) WithPackagingTrigger(trigger packager.Trigger) *Config {
	c.PackagingTrigger = trigger
	return c
}

func (c *Config) WithLogFilePath(path string) *Config { c.LogFilePath = path; return c }

func (c *Config) WithContentDigest(enabled bool) *Config { c.ContentDigest = enabled; return c }

func (c *Config) WithQueueConcurrency(q QueueConcurrency) *Config { c.Queue = q; return c }

func (c *Config) WithStabilityProfile(p stability.Profile) *Config { c.Stability = p; return c }

func (c *Config) WithDeduplicator(opts DeduplicatorOptions) *Config {
	c.Deduplicator = opts
	return c
}

func (c *Config) WithProgressCallback(fn event.ProgressFunc) *Config { c.OnProgress = fn; return c }

func (c *Config) WithFailureCallback(fn event.FailureFunc) *Config { c.OnFailure = fn; return c }

// Validate runs struct-tag validation (which also restricts the transport
// protocol through its oneof tag) plus the checks struct tags alone
// cannot express: non-empty root dirs and compilable rule regexes.
func (c *Config) Validate() liberr.Error {
	if err := libval.New().Struct(c); err != nil {
		return ErrorValidation.Error(err)
	}

	if len(c.RootDirs) == 0 {
		return ErrorEmptyRootDirs.Error(nil)
	}

	if _, err := matchrule.New(c.Rules); err != nil {
		return ErrorInvalidRules.Error(err)
	}

	return nil
}

// LoadTOML decodes a Config from a TOML file over the defaults New
// applies: a field the file omits keeps its default, and a field the file
// sets keeps the file's value, including an explicit 0 or false. Defaults
// derived from the task ID (the log file path) are computed for an empty
// task ID. Callback fields are never populated this way; set them on the
// returned Config before passing it to pipeline.New or ScanAndTransport.
func LoadTOML(path string) (*Config, liberr.Error) {
	cfg := New(nil, nil, TransportConfig{}, "")
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, ErrorValidation.Error(err)
	}
	return cfg, nil
}
