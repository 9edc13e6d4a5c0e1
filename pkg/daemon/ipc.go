package daemon

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Commands accepted on the control socket. A request is one line, the
// command word optionally followed by a button name for CLICK; the reply is
// one line of JSON.
const (
	CmdStatus  = "STATUS"
	CmdClick   = "CLICK"
	CmdRefresh = "REFRESH"
	CmdHealth  = "HEALTH"
	CmdQuit    = "QUIT"
)

const ipcTimeout = 5 * time.Second

// IPCHandler answers one control command with a JSON document.
type IPCHandler interface {
	HandleCommand(cmd string, args map[string]string) (string, error)
}

// IPCServer serves the control socket. The socket is owner-only.
type IPCServer struct {
	socketPath string
	handler    IPCHandler

	ln       net.Listener
	conns    sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewIPCServer(socketPath string, handler IPCHandler) *IPCServer {
	return &IPCServer{
		socketPath: socketPath,
		handler:    handler,
		stopped:    make(chan struct{}),
	}
}

// Start binds the socket, replacing whatever file a crashed daemon left at
// the path, and begins accepting.
func (s *IPCServer) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.ln = ln

	s.conns.Add(1)
	go s.serve()
	return nil
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket file. Repeated calls are no-ops.
func (s *IPCServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.ln != nil {
			_ = s.ln.Close()
		}
		s.conns.Wait()
		_ = os.Remove(s.socketPath)
	})
}

func (s *IPCServer) serve() {
	defer s.conns.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return
			default:
				continue
			}
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.answer(conn)
		}()
	}
}

func (s *IPCServer) answer(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ipcTimeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}
	cmd, args := parseIPCCommand(line)
	if cmd == "" {
		return
	}

	reply, err := s.handler.HandleCommand(cmd, args)
	if err != nil {
		reply = errorReply(err)
	} else if oneLine, cerr := compactJSON(reply); cerr == nil {
		reply = oneLine
	}
	_, _ = fmt.Fprintln(conn, reply)
}

// parseIPCCommand splits a request line. Commands are case-insensitive and
// CLICK takes the button as its only argument.
func parseIPCCommand(line string) (string, map[string]string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToUpper(fields[0])
	args := map[string]string{}
	if cmd == CmdClick && len(fields) > 1 {
		args["button"] = strings.ToLower(fields[1])
	}
	return cmd, args
}

func errorReply(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

func compactJSON(s string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// IPCClient talks to a running daemon. Each request uses a fresh
// connection.
type IPCClient struct {
	socketPath string
}

func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath}
}

// SendCommand writes one request line and returns the raw reply line.
func (c *IPCClient) SendCommand(cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, ipcTimeout)
	if err != nil {
		return "", fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ipcTimeout))

	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	reply = strings.TrimRight(reply, "\r\n")
	if reply == "" {
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", errors.New("empty response from daemon")
	}
	return reply, nil
}

// Call sends cmd and decodes the reply into out, which may be nil. An
// {"error": ...} reply becomes a Go error.
func (c *IPCClient) Call(cmd string, out interface{}) error {
	reply, err := c.SendCommand(cmd)
	if err != nil {
		return err
	}
	var failure struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(reply), &failure) == nil && failure.Error != "" {
		return fmt.Errorf("daemon: %s", failure.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(reply), out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}
