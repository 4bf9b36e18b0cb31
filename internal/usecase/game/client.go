package game

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

var ErrClientClosed = errors.New("client closed")

// Client is one registered connection. Its outbound queue is unbounded so a
// broadcast never waits on a slow reader.
type Client struct {
	ID string

	mu     sync.Mutex
	queue  deque.Deque[[]byte]
	closed bool
	wake   chan struct{}
}

func newClient(id string) *Client {
	return &Client{
		ID:   id,
		wake: make(chan struct{}, 1),
	}
}

// Send enqueues msg. It reports false once the client is closed.
func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue.PushBack(msg)
	c.mu.Unlock()

	c.signal()
	return true
}

// Next blocks until a message is queued, the client is closed or ctx is done.
// Messages come out in the order they were sent.
func (c *Client) Next(ctx context.Context) ([]byte, error) {
	for {
		c.mu.Lock()
		if c.queue.Len() > 0 {
			msg := c.queue.PopFront()
			c.mu.Unlock()
			return msg, nil
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return nil, ErrClientClosed
		}

		select {
		case <-c.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.signal()
}

func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
