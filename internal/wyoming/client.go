// Package wyoming implements a minimal client for the Wyoming satellite
// protocol used to deliver synthesized replies and notification chimes to
// room speakers over a plain TCP connection.
package wyoming

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// header is the newline-terminated JSON event header Wyoming uses ahead of
// an optional binary payload; payload_length declares the payload's size.
type header struct {
	Type       string         `json:"type"`
	Data       map[string]any `json:"data,omitempty"`
	DataLength int            `json:"data_length,omitempty"`
	PayloadLen int            `json:"payload_length,omitempty"`
}

// Client is a pooled, reconnecting connection to one room's Wyoming
// satellite endpoint.
type Client struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
}

// Pool caches one Client per "host:port" endpoint so repeated deliveries to
// the same room reuse an open connection instead of redialing per reply.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	dial    func(addr string) (net.Conn, error)
}

func NewPool() *Pool {
	return &Pool{
		clients: make(map[string]*Client),
		dial:    func(addr string) (net.Conn, error) { return net.DialTimeout("tcp", addr, 3*time.Second) },
	}
}

func (p *Pool) Get(host string, port int) *Client {
	addr := fmt.Sprintf("%s:%d", host, port)
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[addr]; ok {
		return c
	}
	c := &Client{addr: addr}
	p.clients[addr] = c
	return c
}

func (p *Pool) dialer() func(addr string) (net.Conn, error) { return p.dial }

func (c *Client) ensureConn(dial func(addr string) (net.Conn, error)) (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := dial(c.addr)
	if err != nil {
		return nil, fmt.Errorf("wyoming: dial %s: %w", c.addr, err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// SendAudio streams a raw PCM16LE payload (no WAV header) as a Wyoming
// audio-start/audio-chunk/audio-stop event sequence.
func (p *Pool) SendAudio(host string, port int, sampleRate int, pcm []byte) error {
	client := p.Get(host, port)
	conn, err := client.ensureConn(p.dialer())
	if err != nil {
		return err
	}

	if err := writeEvent(conn, header{Type: "audio-start", Data: map[string]any{
		"rate": sampleRate, "width": 2, "channels": 1,
	}}, nil); err != nil {
		client.invalidate()
		return err
	}
	if err := writeEvent(conn, header{Type: "audio-chunk", Data: map[string]any{
		"rate": sampleRate, "width": 2, "channels": 1,
	}}, pcm); err != nil {
		client.invalidate()
		return err
	}
	if err := writeEvent(conn, header{Type: "audio-stop"}, nil); err != nil {
		client.invalidate()
		return err
	}
	return nil
}

func writeEvent(conn net.Conn, h header, payload []byte) error {
	h.PayloadLen = len(payload)
	body, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("wyoming: marshal header: %w", err)
	}
	w := bufio.NewWriter(conn)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return w.Flush()
}
