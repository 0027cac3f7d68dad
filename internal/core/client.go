package core

import "sync"

// ConnState is the lifecycle stage of a connection.
type ConnState int

const (
	// StateAnonymous is a live connection that has not announced a user identity.
	StateAnonymous ConnState = iota
	// StateIdentified is a connection bound to a user and registered as present.
	StateIdentified
	// StateClosed is a disconnected connection; it ignores further commands.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one live connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu     sync.Mutex
	state  ConnState
	userID string
}

// NewClient constructs an anonymous client with initialized channels.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 8
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, buffer),
		Events:   make(chan *Event, buffer),
	}
}

// State returns the current lifecycle stage.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the announced identity, empty while anonymous.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// identify moves the client from Anonymous to Identified.
func (c *Client) identify(userID string) *CoreError {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAnonymous:
		c.state = StateIdentified
		c.userID = userID
		return nil
	case StateIdentified:
		return coreError(ErrCodeAlreadyIdentified, "connection already identified as "+c.userID)
	default:
		return coreError(ErrCodeClosed, "connection closed")
	}
}

// close moves the client to Closed and returns the identity it held, if any.
// The second result is false when the client was already closed.
func (c *Client) close() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return "", false
	}
	userID := c.userID
	c.state = StateClosed
	return userID, true
}

// deliver pushes an event without blocking; it reports false when the buffer is full.
func (c *Client) deliver(event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
