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

// Package ftp is the concrete FTP/FTPS transport.Transport adapter,
// grounded on the Config/New builder idiom of the teacher's ftpclient
// package, built directly on github.com/jlaffaye/ftp rather than wrapping
// an intermediate thread-safe client.
package ftp

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"
	"time"

	libval "github.com/go-playground/validator/v10"
	libftp "github.com/jlaffaye/ftp"

	liberr "github.com/sabouaram/fileingest/errors"
)

const (
	ErrorValidation CodeError = iota + liberr.MinPkgTransport + 50
	ErrorConnection
	ErrorLogin
	ErrorUpload
	ErrorNotConnected
)

type CodeError = liberr.CodeError

func init() {
	if liberr.ExistInMapMessage(liberr.MinPkgTransport + 50) {
		panic(fmt.Errorf("error code collision with package fileingest/transport/ftp"))
	}
	liberr.RegisterIdFctMessage(liberr.MinPkgTransport+50, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorValidation:
		return "transport/ftp: invalid configuration"
	case ErrorConnection:
		return "transport/ftp: connection failed"
	case ErrorLogin:
		return "transport/ftp: login failed"
	case ErrorUpload:
		return "transport/ftp: upload failed"
	case ErrorNotConnected:
		return "transport/ftp: not connected"
	}
	return liberr.NullMessage
}

// ConfigTimeZone mirrors the teacher's ftpclient.ConfigTimeZone shape.
type ConfigTimeZone struct {
	Name   string `mapstructure:"name" json:"name" yaml:"name" toml:"name"`
	Offset int    `mapstructure:"offset" json:"offset" yaml:"offset" toml:"offset"`
}

// Config is the FTP(S) connection configuration, validated the same way
// ftpclient.Config is.
type Config struct {
	Hostname string         `mapstructure:"hostname" json:"hostname" yaml:"hostname" toml:"hostname" validate:"required,hostname_port"`
	Login    string         `mapstructure:"login" json:"login" yaml:"login" toml:"login"`
	Password string         `mapstructure:"password" json:"password" yaml:"password" toml:"password"`

	ConnTimeout time.Duration  `mapstructure:"conn_timeout" json:"conn_timeout" yaml:"conn_timeout" toml:"conn_timeout"`
	TimeZone    ConfigTimeZone `mapstructure:"timezone" json:"timezone" yaml:"timezone" toml:"timezone"`

	DisableUTF8 bool `mapstructure:"disable_utf8" json:"disable_utf8" yaml:"disable_utf8" toml:"disable_utf8"`
	DisableEPSV bool `mapstructure:"disable_epsv" json:"disable_epsv" yaml:"disable_epsv" toml:"disable_epsv"`
	DisableMLSD bool `mapstructure:"disable_mlsd" json:"disable_mlsd" yaml:"disable_mlsd" toml:"disable_mlsd"`
	EnableMDTM  bool `mapstructure:"enable_mdtm" json:"enable_mdtm" yaml:"enable_mdtm" toml:"enable_mdtm"`

	// ForceTLS selects FTPS (explicit AUTH TLS); false is plain FTP.
	ForceTLS bool `mapstructure:"force_tls" json:"force_tls" yaml:"force_tls" toml:"force_tls"`
}

// Validate runs go-playground/validator against the struct tags,
// mirroring ftpclient.Config.Validate.
func (c *Config) Validate() liberr.Error {
	if err := libval.New().Struct(c); err != nil {
		return ErrorValidation.Error(err)
	}
	return nil
}

// Adapter implements transport.Transport over github.com/jlaffaye/ftp.
type Adapter struct {
	cfg Config

	mu   sync.Mutex
	conn *libftp.ServerConn
}

// New builds an Adapter from a validated Config.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// Connect dials and, if credentials are present, logs in, grounded on
// ftpclient.Config.New's dial-then-login sequencing.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	opts := []libftp.DialOption{libftp.DialWithContext(ctx)}

	if a.cfg.ForceTLS {
		opts = append(opts, libftp.DialWithExplicitTLS(&tls.Config{ServerName: hostOnly(a.cfg.Hostname)}))
	}
	if a.cfg.ConnTimeout != 0 {
		opts = append(opts, libftp.DialWithTimeout(a.cfg.ConnTimeout))
	}
	if a.cfg.TimeZone.Name != "" {
		opts = append(opts, libftp.DialWithLocation(time.FixedZone(a.cfg.TimeZone.Name, a.cfg.TimeZone.Offset)))
	}
	if a.cfg.DisableUTF8 {
		opts = append(opts, libftp.DialWithDisabledUTF8(true))
	}
	if a.cfg.DisableEPSV {
		opts = append(opts, libftp.DialWithDisabledEPSV(true))
	}
	if a.cfg.DisableMLSD {
		opts = append(opts, libftp.DialWithDisabledMLSD(true))
	}
	if a.cfg.EnableMDTM {
		opts = append(opts, libftp.DialWithWritingMDTM(true))
	}

	conn, err := libftp.Dial(a.cfg.Hostname, opts...)
	if err != nil {
		return ErrorConnection.Error(err)
	}

	if a.cfg.Login != "" || a.cfg.Password != "" {
		if err := conn.Login(a.cfg.Login, a.cfg.Password); err != nil {
			_ = conn.Quit()
			return ErrorLogin.Error(err)
		}
	}

	a.conn = conn
	return nil
}

// Upload issues a STOR command.
func (a *Adapter) Upload(ctx context.Context, localPath, remotePath string) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return ErrorNotConnected.Error(nil)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return ErrorUpload.Error(err)
	}
	defer func() { _ = f.Close() }()

	done := make(chan error, 1)
	go func() { done <- conn.Stor(remotePath, f) }()

	select {
	case err := <-done:
		if err != nil {
			return ErrorUpload.Error(err)
		}
		return nil
	case <-ctx.Done():
		return ErrorUpload.Error(ctx.Err())
	}
}

// Disconnect issues QUIT.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Quit()
	a.conn = nil
	if err != nil {
		return ErrorConnection.Error(err)
	}
	return nil
}

func hostOnly(hostport string) string {
	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			return hostport[:i]
		}
	}
	return hostport
}
