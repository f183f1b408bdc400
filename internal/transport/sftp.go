// Package transport opens per-job SFTP connections and performs the actual
// file upload, including host-key pinning and mtime preservation.
package transport

import (
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/avalon/sftpc/internal/constants"
	"github.com/avalon/sftpc/internal/site"
)

// Conn wraps one SSH+SFTP connection, opened fresh per Job and never reused.
type Conn struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

// Open dials params.Host:Port and establishes an SFTP session. When
// params.HostKey is set, the connection pins that ssh-rsa host key and
// refuses any other; otherwise host verification is disabled and onInsecure
// (if non-nil) is invoked once so callers can log the reduced posture.
func Open(params site.Params, onInsecure func()) (*Conn, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if len(params.HostKey) > 0 {
		pub, err := ssh.ParsePublicKey(params.HostKey)
		if err != nil {
			return nil, fmt.Errorf("parse pinned host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(pub)
	} else if onInsecure != nil {
		onInsecure()
	}

	config := &ssh.ClientConfig{
		User:            params.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(params.Password)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         constants.SFTPDialTimeout,
	}

	addr := net.JoinHostPort(params.Host, fmt.Sprintf("%d", params.Port))
	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sftpClient, err := newSFTPClientWithTimeout(sshClient, constants.SFTPHandshakeTimeout)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp handshake: %w", err)
	}

	return &Conn{ssh: sshClient, sftp: sftpClient}, nil
}

// newSFTPClientWithTimeout bounds the SFTP subsystem handshake, which
// sftp.NewClient otherwise performs with no deadline of its own.
func newSFTPClientWithTimeout(sshClient *ssh.Client, timeout time.Duration) (*sftp.Client, error) {
	type result struct {
		client *sftp.Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		client, err := sftp.NewClient(sshClient)
		done <- result{client, err}
	}()

	select {
	case r := <-done:
		return r.client, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out after %s", timeout)
	}
}

// Close releases the SFTP session and the underlying SSH connection. Safe to
// call on a partially-initialized Conn.
func (c *Conn) Close() error {
	var sftpErr, sshErr error
	if c.sftp != nil {
		sftpErr = c.sftp.Close()
	}
	if c.ssh != nil {
		sshErr = c.ssh.Close()
	}
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}

// EnsureDirs creates the remote directory tree for dir. Errors are returned
// to the caller, which by contract tolerates them ("already exists" and
// otherwise) since a genuine directory problem surfaces as the subsequent
// Put failing.
func (c *Conn) EnsureDirs(dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	return c.sftp.MkdirAll(dir)
}

// ProgressFunc is invoked at least once per chunk transferred, with the
// cumulative bytes sent and the total file size.
type ProgressFunc func(sent, total int64)

// Put uploads the local file at src to the remote path dst, invoking
// onProgress on every write. When preserveMtime is true, the remote file's
// modification time is set to match the local file's after the copy
// completes.
func (c *Conn) Put(src, dst string, preserveMtime bool, onProgress ProgressFunc) error {
	localFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer localFile.Close()

	info, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("stat local file: %w", err)
	}
	total := info.Size()

	if err := c.EnsureDirs(path.Dir(dst)); err != nil {
		// tolerated per contract; a real directory problem surfaces below.
		_ = err
	}

	remoteFile, err := c.sftp.Create(dst)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}
	defer remoteFile.Close()

	counter := &progressWriter{total: total, onProgress: onProgress}
	if _, err := io.Copy(remoteFile, io.TeeReader(localFile, counter)); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	onProgress(total, total)

	if preserveMtime {
		mtime := info.ModTime()
		if err := c.sftp.Chtimes(dst, mtime, mtime); err != nil {
			return fmt.Errorf("preserve mtime: %w", err)
		}
	}

	return nil
}

type progressWriter struct {
	sent       int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.sent += int64(len(b))
	p.onProgress(p.sent, p.total)
	return len(b), nil
}
