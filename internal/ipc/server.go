package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// connReadTimeout bounds how long the server waits for a request line on
// an accepted connection before giving up on it.
const connReadTimeout = 10 * time.Second

// Server is a local stream-socket endpoint accepting one request per
// connection. It never holds process-wide state; all work is delegated
// to the Handler registered per request type, the same components the
// in-process callers use.
type Server struct {
	listener net.Listener
	path     string
	handlers map[string]Handler
	limiter  *rate.Limiter
}

// Listen binds a unix socket at path (removing any stale file first) and
// returns a Server ready for handler registration.
func Listen(path string) (*Server, error) {
	_ = os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = l.Close()
		return nil, err
	}
	return &Server{
		listener: l,
		path:     path,
		handlers: make(map[string]Handler),
		// best-effort throttle; the socket is local-only so this guards
		// against a runaway client, not a security boundary.
		limiter: rate.NewLimiter(rate.Limit(50), 100),
	}, nil
}

// Register binds a handler for a request type. Not safe to call
// concurrently with Serve.
func (s *Server) Register(typ string, h Handler) {
	s.handlers[typ] = h
}

// Path returns the bound socket path.
func (s *Server) Path() string { return s.path }

// Serve accepts connections until ctx is cancelled, handling each on its
// own goroutine and closing it after exactly one reply.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connReadTimeout))

	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	reply := s.process(ctx, conn)
	enc := json.NewEncoder(conn)
	if err := enc.Encode(reply); err != nil {
		slog.Debug("ipc.reply_write_failed", "error", err)
	}
}

// process reads exactly one request line, dispatches it, and recovers
// from any handler panic so the server never crashes on a malformed or
// hostile payload.
func (s *Server) process(ctx context.Context, conn net.Conn) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			reply = ErrReply("internal error handling request")
		}
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 4096), 1<<20)
	if !sc.Scan() {
		return ErrReply("empty or truncated request")
	}

	var req Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		return ErrReply("malformed request: " + err.Error())
	}

	h, ok := s.handlers[req.Type]
	if !ok {
		return ErrReply("unknown type")
	}

	rctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	return h(rctx, req.Payload)
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

// DiscoverSocket resolves the IPC socket path for a client: the
// IPC_SOCKET_PATH env var if set, otherwise a scan of dir for the first
// ipc-*.sock file that stat-verifies as a socket.
func DiscoverSocket(dir string) (string, error) {
	if p := os.Getenv("IPC_SOCKET_PATH"); p != "" {
		return p, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matched, _ := filepath.Match("ipc-*.sock", e.Name())
		if !matched {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if info, err := os.Stat(full); err == nil && info.Mode()&os.ModeSocket != 0 {
			return full, nil
		}
	}
	return "", errors.New("no ipc-*.sock found in " + dir)
}
