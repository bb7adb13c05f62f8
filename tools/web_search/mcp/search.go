package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"groundchat/models"
)

const protocolVersion = "2024-11-05"

// Client bridges web search to a subprocess speaking newline-delimited
// JSON-RPC over stdio (initialize -> tools/call). The subprocess is started
// lazily on the first request and kept alive across calls.
type Client struct {
	command string
	args    []string
	env     []string
	apiKey  string
	timeout time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	proc    *exec.Cmd
	stdin   io.WriteCloser
	nextID  int64
	pending map[int64]chan rpcMessage
	pendMu  sync.Mutex
}

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  interface{}     `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a stdio JSON-RPC search bridge. When apiKey is non-empty
// it is passed to the subprocess as BRAVE_API_KEY.
func NewClient(command string, args, env []string, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		command: command,
		args:    args,
		env:     env,
		apiKey:  apiKey,
		timeout: timeout,
		logger:  log.New(log.Writer(), "[MCP] ", log.LstdFlags),
		pending: make(map[int64]chan rpcMessage),
	}
}

func (c *Client) Search(ctx context.Context, q string, country, lang string, count int) ([]models.SearchResult, error) {
	result, err := c.request(ctx, "tools/call", map[string]interface{}{
		"name": "brave_web_search",
		"arguments": map[string]interface{}{
			"query": q,
			"count": count,
		},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("malformed tools/call result: %w", err)
	}
	if payload.IsError {
		return nil, fmt.Errorf("tool returned an error result")
	}

	var out []models.SearchResult
	for _, block := range payload.Content {
		if block.Type != "text" || strings.TrimSpace(block.Text) == "" {
			continue
		}
		out = append(out, parseBlock(block.Text)...)
		if len(out) >= count {
			break
		}
	}
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

// Close terminates the subprocess, if running.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc == nil {
		return nil
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	_ = c.proc.Process.Kill()
	_ = c.proc.Wait()
	c.proc = nil
	c.stdin = nil
	return nil
}

// parseBlock decodes one text block. JSON-shaped payloads are tried first;
// otherwise the line-oriented Title:/URL:/Description: fallback format is
// parsed.
func parseBlock(text string) []models.SearchResult {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var list []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			var out []models.SearchResult
			for _, r := range list {
				out = append(out, models.SearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
			}
			return out
		}
	}
	return ParseTextResults(trimmed)
}

// ParseTextResults parses the line-oriented fallback format emitted by
// text-only tool servers:
//
//	Title: ...
//	URL: ...
//	Description: ...
//
// A repeated Title: line starts a new entry. Entries without a URL are
// dropped.
func ParseTextResults(text string) []models.SearchResult {
	var out []models.SearchResult
	var cur models.SearchResult
	var open bool

	flush := func() {
		if open && strings.TrimSpace(cur.URL) != "" {
			out = append(out, cur)
		}
		cur = models.SearchResult{}
		open = false
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case len(line) >= 6 && strings.EqualFold(line[:6], "title:"):
			if open {
				flush()
			}
			cur.Title = strings.TrimSpace(line[6:])
			open = true
		case len(line) >= 4 && strings.EqualFold(line[:4], "url:"):
			cur.URL = strings.TrimSpace(line[4:])
			open = true
		case len(line) >= 12 && strings.EqualFold(line[:12], "description:"):
			cur.Description = strings.TrimSpace(line[12:])
			open = true
		}
	}
	flush()
	return out
}

func (c *Client) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc != nil {
		return nil
	}

	cmd := exec.Command(c.command, c.args...)
	cmd.Env = append(os.Environ(), c.env...)
	if c.apiKey != "" {
		cmd.Env = append(cmd.Env, "BRAVE_API_KEY="+c.apiKey)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.command, err)
	}
	c.proc = cmd
	c.stdin = stdin

	go c.readLoop(stdout)
	go c.drainStderr(stderr)

	if _, err := c.requestLocked("initialize", map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "groundchat", "version": "0.1"},
	}); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return c.notifyLocked("notifications/initialized", nil)
}

func (c *Client) request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := c.start(); err != nil {
		return nil, err
	}

	c.pendMu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan rpcMessage, 1)
	c.pending[id] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	if err := c.send(rpcMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, fmt.Errorf("%s failed: %s (code %d)", method, msg.Error.Message, msg.Error.Code)
		}
		return msg.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("%s timed out after %s", method, c.timeout)
	}
}

// requestLocked issues a request while c.mu is already held (startup
// handshake only); it relies on the read loop, which takes no locks shared
// with start.
func (c *Client) requestLocked(method string, params interface{}) (json.RawMessage, error) {
	c.pendMu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan rpcMessage, 1)
	c.pending[id] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	if err := c.send(rpcMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}
	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, fmt.Errorf("%s failed: %s (code %d)", method, msg.Error.Message, msg.Error.Code)
		}
		return msg.Result, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("%s timed out after %s", method, c.timeout)
	}
}

func (c *Client) notifyLocked(method string, params interface{}) error {
	return c.send(rpcMessage{JSONRPC: "2.0", Method: method, Params: params})
}

// send writes one newline-delimited JSON-RPC frame. The stdio transport
// requires that a frame contains no interior newline.
func (c *Client) send(msg rpcMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if strings.ContainsRune(string(data), '\n') {
		return fmt.Errorf("message contains newline; stdio transport requires newline-delimited JSON")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.stdin.Write(append(data, '\n'))
	return err
}

func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg rpcMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.ID == nil {
			continue
		}
		c.pendMu.Lock()
		ch, ok := c.pending[*msg.ID]
		c.pendMu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

func (c *Client) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		c.logger.Printf("subprocess: %s", scanner.Text())
	}
}
