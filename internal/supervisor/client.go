package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// PropertyChange is one raw PropertiesChanged-equivalent notification
// from the supervisor, before path parsing.
type PropertyChange struct {
	Path     string `json:"path"`
	Property string `json:"property"`
	Value    string `json:"value"`
}

// Client is the IPC bus operations the core consumes from the link
// supervisor (spec.md §6): ListLinks, per-link Get(AdministrativeState),
// Reload, and the PropertiesChanged subscription. No D-Bus binding
// appears anywhere in the example pack this project draws from, so the
// transport is the same WebSocket approach internal/ipcbus uses for the
// outbound side.
type Client interface {
	ListLinks(ctx context.Context) ([]uint32, error)
	AdministrativeState(ctx context.Context, ifidx uint32) (string, error)
	Subscribe(ctx context.Context) (<-chan PropertyChange, error)
	Reload(ctx context.Context) error
}

// WebSocketClient implements Client against a supervisor exposing a
// small HTTP/WebSocket surface: GET /links, GET /links/{idx}/state,
// POST /reload, and a WS /subscribe feed of PropertyChange messages.
type WebSocketClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebSocketClient(baseURL string) *WebSocketClient {
	return &WebSocketClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *WebSocketClient) ListLinks(ctx context.Context) ([]uint32, error) {
	var links []uint32
	if err := c.getJSON(ctx, "/links", &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (c *WebSocketClient) AdministrativeState(ctx context.Context, ifidx uint32) (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/links/%d/state", ifidx), &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

func (c *WebSocketClient) Reload(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reload", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("supervisor reload: status %d", resp.StatusCode)
	}
	return nil
}

func (c *WebSocketClient) Subscribe(ctx context.Context) (<-chan PropertyChange, error) {
	wsURL := "ws" + c.baseURL[len("http"):] + "/subscribe"
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("supervisor subscribe: %w", err)
	}

	out := make(chan PropertyChange, 64)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var change PropertyChange
			if err := conn.ReadJSON(&change); err != nil {
				return
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *WebSocketClient) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("supervisor %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
