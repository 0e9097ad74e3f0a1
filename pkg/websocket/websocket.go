package websocketPkg

import (
	"SignSync/pkg/imaging"
	"SignSync/pkg/log"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var ErrRemoteInference = errors.New("remote inference service returned an error")

// IWebsocket is a classifier backed by an external inference service.
// Tensors go out as little-endian float32 binary frames; the service
// answers each one with a JSON ScoreMessage.
type IWebsocket interface {
	Predict(ctx context.Context, input *imaging.Tensor) ([]float32, error)
	IsConnected() bool
	Reconnect() error
	Close() error
}

type ScoreMessage struct {
	Scores []float32 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

type Config struct {
	URL          string
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type webSocketClient struct {
	url          string
	conn         *websocket.Conn
	mu           sync.Mutex
	reqMu        sync.Mutex
	stop         chan struct{}
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewInferenceClient(cfg Config) IWebsocket {
	client := &webSocketClient{
		url:          cfg.URL,
		pingInterval: cfg.PingInterval,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
	if client.pingInterval <= 0 {
		client.pingInterval = 30 * time.Second
	}
	if client.readTimeout <= 0 {
		client.readTimeout = 10 * time.Second
	}
	if client.writeTimeout <= 0 {
		client.writeTimeout = 5 * time.Second
	}

	go client.connectInBackground()

	return client
}

func (c *webSocketClient) connectInBackground() {
	if err := c.Reconnect(); err != nil {
		log.Warn(log.Fields{
			"url":   c.url,
			"error": err.Error(),
		}, "Initial connection to inference service failed, will retry on demand")
		return
	}
	log.Info(log.Fields{"url": c.url}, "Connected to inference service")
}

func (c *webSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

func (c *webSocketClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()

	if c.url == "" {
		return fmt.Errorf("inference service URL not configured")
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "Error sending pong to inference service")
		}
		return nil
	})

	c.conn = conn
	c.stop = make(chan struct{})
	go c.keepAlive(conn, c.stop)

	return nil
}

// dropLocked closes the current connection; c.mu must be held.
func (c *webSocketClient) dropLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *webSocketClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.dropLocked()
	}
}

func (c *webSocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()
	return nil
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Warn(log.Fields{
				"url":   c.url,
				"error": err.Error(),
			}, "Ping failed, marking inference connection as dead")
			c.dropLocked()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *webSocketClient) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("not connected to inference service")
	}

	return c.conn, nil
}

// Predict holds reqMu for the whole round trip so replies on the shared
// connection pair up with their requests.
func (c *webSocketClient) Predict(ctx context.Context, input *imaging.Tensor) ([]float32, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := c.getConnection()
	if err != nil {
		if err := c.Reconnect(); err != nil {
			return nil, fmt.Errorf("cannot connect to inference service: %w", err)
		}
		conn, err = c.getConnection()
		if err != nil {
			return nil, err
		}
	}

	frame := EncodeTensor(input)

	c.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	err = conn.WriteMessage(websocket.BinaryMessage, frame)
	c.mu.Unlock()
	if err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("error reading scores: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var reply ScoreMessage
	if err := jsoniter.Unmarshal(message, &reply); err != nil {
		return nil, fmt.Errorf("error unmarshaling scores: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemoteInference, reply.Error)
	}

	log.Debug(log.Fields{"scores": len(reply.Scores)}, "Received scores from inference service")

	return reply.Scores, nil
}

// EncodeTensor lays the tensor out as little-endian float32 values.
func EncodeTensor(t *imaging.Tensor) []byte {
	buf := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func DecodeTensor(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("tensor payload length %d is not a multiple of 4", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}
