// Package sshtunnel exposes a remote REST endpoint on a local loopback port
// over a long-lived SSH connection, and provides ad-hoc remote file fetch,
// directory sync, and command execution over the same connection.
package sshtunnel

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/logging"
)

// Config describes the SSH target used to reach the cluster.
type Config struct {
	User    string
	Host    string
	Port    int
	KeyPath string
}

// Manager owns one SSH connection and the set of local ports it forwards.
// One mutual-exclusion lock per forwarded port serializes probe-and-repair
// so concurrent callers never race to re-establish the same tunnel (spec §5).
type Manager struct {
	cfg Config
	log *logging.Logger

	mu     sync.Mutex
	client *ssh.Client

	portMu sync.Map // localPort -> *sync.Mutex
	active sync.Map // localPort -> net.Listener
}

// NewManager builds a Manager; the SSH connection is established lazily on
// first use so construction never blocks on the network.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, log: logging.With("sshtunnel")}
}

func (m *Manager) lockFor(localPort int) *sync.Mutex {
	v, _ := m.portMu.LoadOrStore(localPort, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (m *Manager) dial(ctx context.Context) (*ssh.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		// A cheap liveness check: a closed connection fails to open a
		// session.
		if sess, err := m.client.NewSession(); err == nil {
			sess.Close()
			return m.client, nil
		}
		m.client.Close()
		m.client = nil
	}

	signer, err := loadSigner(m.cfg.KeyPath)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindTunnelFailure, "load SSH key failed", err)
	}

	clientCfg := &ssh.ClientConfig{
		User:            m.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // cluster-internal jump host, key pinning out of scope
		Timeout:         15 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindTunnelFailure, fmt.Sprintf("dial %s failed", addr), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, apierr.Wrap(apierr.KindTunnelFailure, "SSH handshake failed", err)
	}

	m.client = ssh.NewClient(sshConn, chans, reqs)
	return m.client, nil
}

func loadSigner(keyPath string) (ssh.Signer, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", keyPath, err)
	}
	return signer, nil
}

// EnsureTunnel exposes remoteHost:remotePort on 127.0.0.1:localPort over the
// SSH connection. Idempotent: a prior call for the same localPort is
// detected with a probe and reused rather than opening a second listener.
func (m *Manager) EnsureTunnel(ctx context.Context, localPort int, remoteHost string, remotePort int) (int, error) {
	lock := m.lockFor(localPort)
	lock.Lock()
	defer lock.Unlock()

	if m.probe(ctx, localPort) {
		return localPort, nil
	}

	if err := m.forward(ctx, localPort, remoteHost, remotePort); err != nil {
		return 0, err
	}

	// One retry: if the fresh tunnel still fails an immediate probe, surface
	// TunnelFailure per spec §4.1.
	if !m.probe(ctx, localPort) {
		m.teardown(localPort)
		if err := m.forward(ctx, localPort, remoteHost, remotePort); err != nil {
			return 0, err
		}
		if !m.probe(ctx, localPort) {
			return 0, apierr.New(apierr.KindTunnelFailure, fmt.Sprintf("tunnel on port %d failed health probe", localPort))
		}
	}

	return localPort, nil
}

// probe issues an HTTP ping against the forwarded port to detect an active,
// healthy tunnel.
func (m *Manager) probe(ctx context.Context, localPort int) bool {
	if _, ok := m.active.Load(localPort); !ok {
		return false
	}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/ping", localPort), nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (m *Manager) forward(ctx context.Context, localPort int, remoteHost string, remotePort int) error {
	client, err := m.dial(ctx)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", localPort))
	if err != nil {
		return apierr.Wrap(apierr.KindTunnelFailure, fmt.Sprintf("listen on local port %d failed", localPort), err)
	}

	m.active.Store(localPort, listener)
	remoteAddr := fmt.Sprintf("%s:%d", remoteHost, remotePort)

	go func() {
		for {
			localConn, err := listener.Accept()
			if err != nil {
				return
			}
			go m.proxyConn(client, localConn, remoteAddr)
		}
	}()

	return nil
}

func (m *Manager) proxyConn(client *ssh.Client, localConn net.Conn, remoteAddr string) {
	defer localConn.Close()

	remoteConn, err := client.Dial("tcp", remoteAddr)
	if err != nil {
		m.log.Warnf("tunnel dial %s failed: %v", remoteAddr, err)
		return
	}
	defer remoteConn.Close()

	done := make(chan struct{}, 2)
	go func() { copyAndSignal(remoteConn, localConn, done) }()
	go func() { copyAndSignal(localConn, remoteConn, done) }()
	<-done
}

func copyAndSignal(dst, src net.Conn, done chan struct{}) {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}
	done <- struct{}{}
}

func (m *Manager) teardown(localPort int) {
	if v, ok := m.active.LoadAndDelete(localPort); ok {
		v.(net.Listener).Close()
	}
}

// FetchRemoteFile reads a file from the remote side over SFTP-less cat, and
// writes it locally, creating parent directories as needed.
func (m *Manager) FetchRemoteFile(ctx context.Context, remotePath, localPath string) (bool, error) {
	client, err := m.dial(ctx)
	if err != nil {
		return false, err
	}

	session, err := client.NewSession()
	if err != nil {
		return false, apierr.Wrap(apierr.KindTunnelFailure, "open SSH session failed", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Run(fmt.Sprintf("cat -- %s", shellQuote(remotePath))); err != nil {
		if strings.Contains(stderr.String(), "No such file") {
			return false, nil
		}
		return false, apierr.Wrap(apierr.KindTunnelFailure, fmt.Sprintf("fetch %s failed", remotePath), err)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return false, fmt.Errorf("create local dir for %s: %w", localPath, err)
	}
	if err := os.WriteFile(localPath, stdout.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", localPath, err)
	}
	return true, nil
}

// SyncDirectory mirrors localDir to remoteDir one-way (local -> remote),
// skipping paths whose suffix matches an exclude entry.
func (m *Manager) SyncDirectory(ctx context.Context, localDir, remoteDir string, exclude []string) (bool, error) {
	client, err := m.dial(ctx)
	if err != nil {
		return false, err
	}

	session, err := client.NewSession()
	if err != nil {
		return false, apierr.Wrap(apierr.KindTunnelFailure, "open SSH session failed", err)
	}
	if _, err := session.CombinedOutput(fmt.Sprintf("mkdir -p -- %s", shellQuote(remoteDir))); err != nil {
		session.Close()
		return false, apierr.Wrap(apierr.KindTunnelFailure, "create remote directory failed", err)
	}
	session.Close()

	return true, filepath.Walk(localDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		for _, suffix := range exclude {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		remotePath := filepath.ToSlash(filepath.Join(remoteDir, rel))

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		sess, err := client.NewSession()
		if err != nil {
			return apierr.Wrap(apierr.KindTunnelFailure, "open SSH session failed", err)
		}
		defer sess.Close()

		sess.Stdin = bytes.NewReader(data)
		remoteParent := filepath.ToSlash(filepath.Dir(remotePath))
		cmd := fmt.Sprintf("mkdir -p -- %s && cat > %s", shellQuote(remoteParent), shellQuote(remotePath))
		if err := sess.Run(cmd); err != nil {
			return apierr.Wrap(apierr.KindTunnelFailure, fmt.Sprintf("sync %s failed", remotePath), err)
		}
		return nil
	})
}

// Execute runs command on the remote host with the given timeout, returning
// whether it exited zero along with captured stdout/stderr.
func (m *Manager) Execute(ctx context.Context, command string, timeout time.Duration) (ok bool, stdout, stderr string, err error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, dialErr := m.dial(execCtx)
	if dialErr != nil {
		return false, "", "", dialErr
	}

	session, sessErr := client.NewSession()
	if sessErr != nil {
		return false, "", "", apierr.Wrap(apierr.KindTunnelFailure, "open SSH session failed", sessErr)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(command) }()

	select {
	case <-execCtx.Done():
		session.Signal(ssh.SIGKILL)
		return false, outBuf.String(), errBuf.String(), apierr.New(apierr.KindTimeout, "remote command timed out")
	case e := <-runErr:
		if e != nil {
			return false, outBuf.String(), errBuf.String(), nil
		}
		return true, outBuf.String(), errBuf.String(), nil
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
