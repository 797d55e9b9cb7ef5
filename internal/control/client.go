package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends control commands to a running executor
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new control client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    30 * time.Second,
	}
}

// SetTimeout sets the client timeout for commands
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command to the executor and waits for response
func (c *Client) SendCommand(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to executor (is it running?): %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}
	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}

// Status requests the current goal status
func (c *Client) Status() (*Response, error) {
	return c.SendCommand(Command{Type: CommandStatus})
}

// StartGoal asks the executor to start the named goal
func (c *Client) StartGoal(name string) (*Response, error) {
	return c.SendCommand(Command{Type: CommandStartGoal, Goal: name})
}

// Work asks the executor to perform one step on the current goal now
func (c *Client) Work() (*Response, error) {
	return c.SendCommand(Command{Type: CommandWork})
}

// List requests the goal list, optionally filtered by type and priority
func (c *Client) List(goalType, priority string) (*Response, error) {
	return c.SendCommand(Command{Type: CommandList, GoalType: goalType, Priority: priority})
}

// Stop asks the executor to stop after the current iteration
func (c *Client) Stop() (*Response, error) {
	return c.SendCommand(Command{Type: CommandStop})
}
