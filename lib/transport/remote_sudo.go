// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
)

// OutputChunk is one piece of combined stdout+stderr output from a
// running remote command.
type OutputChunk struct {
	Data string
}

// ExecSudo runs command on the remote host with privilege elevation,
// piping password over stdin to `sudo -S`, exactly as
// original_source's remote_sudo.rs does it. Output chunks (combined
// stdout+stderr, raw read buffers with no terminator added or removed)
// are sent to onChunk as they arrive; ExecSudo returns once the command
// exits or ctx is done.
//
// The constructed command string embeds the password and must never be
// logged; callers pass only command (the already-expanded task
// command) for logging purposes, never the string this function
// actually executes on the wire.
func (s *Session) ExecSudo(ctx context.Context, password, command string, onChunk func(OutputChunk)) error {
	session, err := s.client.NewSession()
	if err != nil {
		return scenarioerrors.New(scenarioerrors.RemoteExitNonZero, fmt.Errorf("opening channel: %w", err))
	}
	defer session.Close()

	if err := session.RequestPty("xterm", 80, 40, ssh.TerminalModes{}); err != nil {
		return scenarioerrors.New(scenarioerrors.RemoteExitNonZero, fmt.Errorf("requesting pty: %w", err))
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		return scenarioerrors.New(scenarioerrors.RemoteExitNonZero, fmt.Errorf("opening stdout: %w", err))
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return scenarioerrors.New(scenarioerrors.RemoteExitNonZero, fmt.Errorf("opening stderr: %w", err))
	}

	// sudo -S reads the password from stdin, once, before running
	// command. This mirrors original_source's
	// `echo {password} | sudo -S {command}` pipeline exactly; the
	// password never touches a log line, only this in-flight wire
	// command.
	remoteCommand := fmt.Sprintf("echo %s | sudo -S %s", shellQuote(password), command)

	if err := session.Start(remoteCommand); err != nil {
		return scenarioerrors.New(scenarioerrors.RemoteExitNonZero, fmt.Errorf("starting remote command: %w", err))
	}

	// stdout and stderr are read by two goroutines, but onChunk must see
	// one chunk at a time: both feed a single channel, drained by one
	// goroutine, so callers never need their own synchronization.
	chunks := make(chan OutputChunk)
	var streamers sync.WaitGroup
	streamers.Add(2)
	go func() { defer streamers.Done(); streamLines(stdout, chunks) }()
	go func() { defer streamers.Done(); streamLines(stderr, chunks) }()
	go func() { streamers.Wait(); close(chunks) }()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for chunk := range chunks {
			onChunk(chunk)
		}
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return scenarioerrors.New(scenarioerrors.Cancelled, ctx.Err())
	case err := <-waitDone:
		<-drained
		if err == nil {
			return nil
		}
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return scenarioerrors.Newf(scenarioerrors.RemoteExitNonZero, "remote command exited with status %d", exitErr.ExitStatus())
		}
		return scenarioerrors.New(scenarioerrors.RemoteExitNonZero, err)
	}
}

// streamLines forwards r's contents to chunks as-is: whatever bytes a
// single Read returns become one OutputChunk, with no line buffering
// and no terminator added or stripped. A command's final, unterminated
// write must come through unchanged (spec.md §8 scenario 1).
func streamLines(r io.Reader, chunks chan<- OutputChunk) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunks <- OutputChunk{Data: string(buf[:n])}
		}
		if err != nil {
			return
		}
	}
}

// shellQuote wraps s in single quotes for safe inclusion in a remote
// shell command line, escaping embedded single quotes POSIX-style.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
