// Package relay drives a single normally-closed relay-actuated valve (C1).
//
// rpcClient is generic msgpack-rpc transport: framing and connection
// management (including lazy reconnection) are identical no matter which
// board sits on the other end of the socket. Retrying a failed call is left
// to the caller (GPIODriver.SetState). The relay-board-specific surface — SetRelay, the
// retryable/permanent fault codes in rpc_methods.go — is kept in its own
// file so the transport stays reusable if a second hardware daemon (e.g. a
// soil-moisture sensor board) ever needs the same socket plumbing.
package relay

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultSocketPath is the default path to the relay-board daemon's
	// Unix socket.
	DefaultSocketPath = "/var/run/relay-board.sock"

	// ReadTimeout is the timeout for reading responses from the socket.
	ReadTimeout = 5 * time.Second

	// WriteTimeout is the timeout for writing to the socket.
	WriteTimeout = 5 * time.Second
)

var (
	// ErrNotConnected is returned when attempting to send without a connection.
	ErrNotConnected = errors.New("not connected to relay board")

	// ErrSocketNotFound is returned when the socket file doesn't exist.
	ErrSocketNotFound = errors.New("relay board socket not found")
)

// rpcClient manages the connection to the relay-board Unix socket.
type rpcClient struct {
	socketPath  string
	conn        net.Conn
	mu          sync.Mutex
	log         zerolog.Logger
	msgID       uint32
	isConnected bool
}

// newRPCClient opens (or prepares to lazily open) a connection to the
// relay-board daemon. Returns ErrSocketNotFound if the socket does not
// exist.
func newRPCClient(socketPath string, log zerolog.Logger) (*rpcClient, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		log.Info().Str("socket_path", socketPath).Msg("relay board socket not found")
		return nil, ErrSocketNotFound
	}

	client := &rpcClient{
		socketPath: socketPath,
		log:        log.With().Str("component", "relay_rpc_client").Logger(),
	}

	if err := client.connect(); err != nil {
		client.log.Warn().Err(err).Msg("initial relay board connection failed, will retry on first call")
	}

	return client, nil
}

func (c *rpcClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

func (c *rpcClient) connectLocked() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.isConnected = false
	}

	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		c.log.Debug().Err(err).Str("socket_path", c.socketPath).Msg("failed to connect to relay board socket")
		return err
	}

	c.conn = conn
	c.isConnected = true
	c.log.Info().Str("socket_path", c.socketPath).Msg("connected to relay board socket")

	return nil
}

// Close closes the connection to the relay board.
func (c *rpcClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.isConnected = false
		c.log.Info().Msg("relay board connection closed")
		return err
	}
	return nil
}

// IsConnected returns whether the client is currently connected.
func (c *rpcClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// getConn returns the current connection, attempting to reconnect if needed.
// Caller must NOT hold the mutex.
func (c *rpcClient) getConn() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.isConnected {
		return c.conn, nil
	}

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	return c.conn, nil
}

func (c *rpcClient) nextMsgID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgID++
	return c.msgID
}

func (c *rpcClient) markDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
