package relay

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// msgpack-rpc message types
const (
	msgTypeRequest      = 0
	msgTypeResponse     = 1
	msgTypeNotification = 2
)

// RPCError represents an error returned by the relay board.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Call sends an RPC request and waits for a response.
func (c *rpcClient) Call(method string, params ...interface{}) (interface{}, error) {
	conn, err := c.getConn()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	msgID := c.nextMsgID()

	// Build request: [type=0, msgid, method, params]
	request := []interface{}{msgTypeRequest, msgID, method, params}

	if err := c.sendMessage(conn, request); err != nil {
		c.markDisconnected()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	response, err := c.readResponse(conn)
	if err != nil {
		c.markDisconnected()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response: [type=1, msgid, error, result]
	if len(response) < 4 {
		return nil, fmt.Errorf("invalid response format: expected 4 elements, got %d", len(response))
	}

	respType, ok := toInt(response[0])
	if !ok || respType != msgTypeResponse {
		return nil, fmt.Errorf("unexpected response type: %v", response[0])
	}

	if response[2] != nil {
		errData, ok := response[2].([]interface{})
		if ok && len(errData) >= 2 {
			code, _ := toInt(errData[0])
			msg, _ := errData[1].(string)
			return nil, &RPCError{Code: code, Message: msg}
		}
		return nil, fmt.Errorf("RPC error: %v", response[2])
	}

	return response[3], nil
}

// Notify sends an RPC notification (no response expected).
func (c *rpcClient) Notify(method string, params ...interface{}) error {
	conn, err := c.getConn()
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}

	notification := []interface{}{msgTypeNotification, method, params}

	if err := c.sendMessage(conn, notification); err != nil {
		c.markDisconnected()
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

func (c *rpcClient) sendMessage(conn io.Writer, msg interface{}) error {
	if nc, ok := conn.(net.Conn); ok {
		nc.SetWriteDeadline(time.Now().Add(WriteTimeout))
	}

	encoder := msgpack.NewEncoder(conn)
	return encoder.Encode(msg)
}

func (c *rpcClient) readResponse(conn io.Reader) ([]interface{}, error) {
	if nc, ok := conn.(net.Conn); ok {
		nc.SetReadDeadline(time.Now().Add(ReadTimeout))
	}

	decoder := msgpack.NewDecoder(conn)
	var response []interface{}
	if err := decoder.Decode(&response); err != nil {
		return nil, err
	}

	return response, nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
