package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Command types understood by the executor
const (
	CommandStatus    = "status"
	CommandStartGoal = "start_goal"
	CommandWork      = "work"
	CommandList      = "list"
	CommandStop      = "stop"
)

// Command represents a control command sent to the executor
type Command struct {
	Type      string                 `json:"type"`                // status, start_goal, work, list, stop
	Goal      string                 `json:"goal,omitempty"`      // Target goal (start_goal)
	GoalType  string                 `json:"goal_type,omitempty"` // Optional list filter
	Priority  string                 `json:"priority,omitempty"`  // Optional list filter
	Timestamp time.Time              `json:"timestamp"`           // When command was sent
	Metadata  map[string]interface{} `json:"metadata,omitempty"`  // Additional metadata
}

// Response represents a response to a control command
type Response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Decode re-decodes the response data into target (a pointer to a struct
// with json tags).
func (r *Response) Decode(target interface{}) error {
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal response data: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// Handler executes a command and returns response data.
type Handler func(ctx context.Context, cmd Command) (map[string]interface{}, error)

// Server manages the control socket for executor communication
type Server struct {
	socketPath string
	logger     *zap.Logger
	listener   net.Listener
	mu         sync.RWMutex
	running    bool
	stopOnce   sync.Once
	stopCh     chan struct{}
	doneCh     chan struct{}
	conns      sync.WaitGroup

	onCommand Handler
}

// NewServer creates a new control server on a unix socket
func NewServer(socketPath string, onCommand Handler, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Remove a stale socket left by a crashed previous instance
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	return &Server{
		socketPath: socketPath,
		logger:     logger.Named("control"),
		onCommand:  onCommand,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins listening for control commands
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("control server already running")
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create control socket: %w", err)
	}

	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("control server listening", zap.String("socket", s.socketPath))

	go s.acceptLoop(ctx)
	return nil
}

// Serve starts the server and blocks until ctx is done, then stops it.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept error", zap.Error(err))
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Bad clients must not hang a handler
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		s.logger.Warn("failed to set read deadline", zap.Error(err))
		return
	}

	var cmd Command
	if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
		s.sendError(conn, fmt.Sprintf("failed to decode command: %v", err))
		return
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}

	var resp Response
	if s.onCommand == nil {
		resp = Response{
			Success: false,
			Message: "No command handler registered",
			Error:   "server misconfiguration",
		}
	} else if data, err := s.onCommand(ctx, cmd); err != nil {
		resp = Response{
			Success: false,
			Message: fmt.Sprintf("Command failed: %v", err),
			Error:   err.Error(),
		}
	} else {
		resp = Response{
			Success: true,
			Message: fmt.Sprintf("Command '%s' completed successfully", cmd.Type),
			Data:    data,
		}
	}

	s.logger.Debug("control command handled",
		zap.String("type", cmd.Type),
		zap.String("goal", cmd.Goal),
		zap.Bool("success", resp.Success))

	if err := s.sendResponse(conn, resp); err != nil {
		s.logger.Warn("failed to send response", zap.Error(err))
	}
}

func (s *Server) sendError(conn net.Conn, message string) {
	_ = s.sendResponse(conn, Response{Success: false, Message: message, Error: message})
}

func (s *Server) sendResponse(conn net.Conn, resp Response) error {
	return json.NewEncoder(conn).Encode(resp)
}

// Stop closes the listener, waits for in-flight connections and removes
// the socket file. Safe to call more than once.
func (s *Server) Stop() error {
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	if listener == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("error closing listener", zap.Error(err))
		}

		select {
		case <-s.doneCh:
		case <-time.After(5 * time.Second):
			s.logger.Warn("timeout waiting for control server shutdown")
		}
		s.conns.Wait()

		if err := os.RemoveAll(s.socketPath); err != nil {
			s.logger.Warn("failed to remove socket file", zap.Error(err))
		}
		s.logger.Info("control server stopped")
	})
	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SocketPath returns the path to the control socket
func (s *Server) SocketPath() string {
	return s.socketPath
}
