// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements component F: an SSH/SFTP capability
// type exposing exec_sudo (privileged remote command execution with
// streaming output) and sftp_put (chunked file upload with byte-level
// progress). A single session is opened once and reused for every task
// in a scenario execution, per SPEC_FULL.md §4.F.
package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
)

// ChunkSize is the fixed buffer size used by SftpPut when streaming a
// file, matching testable property 6's literal scenario (ten 1 MiB
// progress events for a 10 MiB file).
const ChunkSize = 1 << 20 // 1 MiB

// Session wraps a single SSH connection, reused for all tasks in one
// scenario execution. Callers must call Close when the execution ends,
// whether on success or failure.
type Session struct {
	client *ssh.Client
}

// Options configures how a Session is opened.
type Options struct {
	Host     string
	Port     uint16
	Username string
	Password string // empty means authenticate via the local SSH agent

	// KnownHostsPath is where accepted host keys are recorded and
	// checked, implementing the trust-on-first-use policy resolved in
	// SPEC_FULL.md §4.F. A host key seen for the first time is
	// accepted and appended; a host key that conflicts with a
	// previously recorded entry fails the handshake, which Open
	// reports as TransportConnect.
	KnownHostsPath string

	// ConnectTimeout bounds the initial TCP dial and SSH handshake.
	ConnectTimeout time.Duration
}

// Open dials the configured host, performs the SSH handshake, and
// authenticates using password auth if Password is set, otherwise the
// local SSH agent (SSH_AUTH_SOCK). The password is used only to
// authenticate; it is never logged, never returned, and never stored
// beyond the duration of this call.
func Open(opts Options) (*Session, error) {
	hostKeyCallback, err := trustOnFirstUseCallback(opts.KnownHostsPath)
	if err != nil {
		return nil, scenarioerrors.New(scenarioerrors.TransportConnect, err)
	}

	config := &ssh.ClientConfig{
		User:            opts.Username,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.ConnectTimeout,
	}

	if opts.Password != "" {
		config.Auth = []ssh.AuthMethod{ssh.Password(opts.Password)}
	} else {
		authMethod, err := agentAuthMethod()
		if err != nil {
			return nil, scenarioerrors.New(scenarioerrors.TransportAuth, err)
		}
		config.Auth = []ssh.AuthMethod{authMethod}
	}

	address := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))
	client, err := ssh.Dial("tcp", address, config)
	if err != nil {
		if isAuthError(err) {
			return nil, scenarioerrors.New(scenarioerrors.TransportAuth, err)
		}
		return nil, scenarioerrors.New(scenarioerrors.TransportConnect, fmt.Errorf("dialing %s: %w", address, err))
	}

	return &Session{client: client}, nil
}

// Close terminates the underlying SSH connection.
func (s *Session) Close() error {
	return s.client.Close()
}

func agentAuthMethod() (ssh.AuthMethod, error) {
	socketPath := os.Getenv("SSH_AUTH_SOCK")
	if socketPath == "" {
		return nil, fmt.Errorf("no password configured and SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to ssh-agent at %s: %w", socketPath, err)
	}
	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers), nil
}

func isAuthError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

// trustOnFirstUseCallback builds a HostKeyCallback backed by a
// known_hosts-formatted file at path. A host seen for the first time
// is appended to the file and accepted; a host whose recorded key
// differs from the one offered is rejected. This resolves spec.md
// §9's open host-key-policy question: original_source accepts any
// host key unconditionally, which this engine deliberately tightens to
// TOFU (see DESIGN.md) since the core must not prompt a UI for
// confirmation.
func trustOnFirstUseCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		return nil, fmt.Errorf("KnownHostsPath must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating known_hosts directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("creating known_hosts file: %w", err)
		}
		file.Close()
	}

	baseCallback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts %s: %w", path, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := baseCallback(hostname, remote, key)
		if err == nil {
			return nil
		}
		if keyErr, ok := asKeyError(err); ok && len(keyErr.Want) == 0 {
			// Unknown host: trust on first use, record it.
			return appendKnownHost(path, hostname, remote, key)
		}
		return err
	}, nil
}

func asKeyError(err error) (*knownhosts.KeyError, bool) {
	keyErr, ok := err.(*knownhosts.KeyError)
	return keyErr, ok
}

func appendKnownHost(path, hostname string, remote net.Addr, key ssh.PublicKey) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("recording host key for %s: %w", hostname, err)
	}
	defer file.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname), knownhosts.Normalize(remote.String())}, key)
	if _, err := file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("recording host key for %s: %w", hostname, err)
	}
	return nil
}
