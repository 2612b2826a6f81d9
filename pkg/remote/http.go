package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"inkwash/pkg/logger"
	"inkwash/pkg/models"
	"inkwash/pkg/tilemap"
)

// Client talks to the inkwash tile-store daemon over HTTP, with websocket
// push for tile subscriptions.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a Client for the daemon at baseURL (e.g.
// "http://localhost:8090").
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// saveRequest is the wire body of POST /v1/strokes.
type saveRequest struct {
	User     string                           `json:"user"`
	TotalInk float64                          `json:"totalInk"`
	Tiles    map[string][]models.StrokeRecord `json:"tiles"`
}

type cleanupRequest struct {
	MaxAgeMs int64 `json:"maxAgeMs"`
}

func (c *Client) LoadTile(ctx context.Context, id tilemap.TileID) (models.Tile, error) {
	var t models.Tile
	err := c.getJSON(ctx, "/v1/tiles/"+url.PathEscape(id.Key()), &t)
	return t, err
}

func (c *Client) SaveStrokes(ctx context.Context, grouped map[string][]models.StrokeRecord, userID string, totalInk float64) error {
	body := saveRequest{User: userID, TotalInk: totalInk, Tiles: grouped}
	return c.postJSON(ctx, "/v1/strokes", body)
}

func (c *Client) LoadAccount(ctx context.Context, userID string) (models.InkAccount, error) {
	var a models.InkAccount
	err := c.getJSON(ctx, "/v1/ink/"+url.PathEscape(userID), &a)
	return a, err
}

func (c *Client) CleanupTile(ctx context.Context, id tilemap.TileID, maxAge time.Duration) error {
	return c.postJSON(ctx, "/v1/tiles/"+url.PathEscape(id.Key())+"/cleanup", cleanupRequest{MaxAgeMs: maxAge.Milliseconds()})
}

type wsSub struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *wsSub) Cancel() { s.once.Do(s.cancel) }

// Subscribe opens a websocket to the daemon and forwards full tile states
// to onChange. The read loop reconnects with exponential backoff until the
// subscription is cancelled.
func (c *Client) Subscribe(ctx context.Context, id tilemap.TileID, onChange func(models.Tile)) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	wsURL := strings.Replace(c.base, "http", "ws", 1) + "/v1/subscribe?tile=" + url.QueryEscape(id.Key())

	go func() {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0 // retry until cancelled
		for {
			if subCtx.Err() != nil {
				return
			}
			if err := c.readLoop(subCtx, wsURL, onChange); err != nil && subCtx.Err() == nil {
				logger.Warn("tile_subscription_interrupted", "tile", id.Key(), "error", err)
			}
			if subCtx.Err() != nil {
				return
			}
			select {
			case <-time.After(bo.NextBackOff()):
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &wsSub{cancel: cancel}, nil
}

// readLoop dials the subscription socket and pushes decoded tiles until the
// connection drops or the context ends.
func (c *Client) readLoop(ctx context.Context, wsURL string, onChange func(models.Tile)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	// close the socket when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var t models.Tile
		if err := json.Unmarshal(data, &t); err != nil {
			logger.Warn("tile_update_decode_failed", "error", err)
			continue
		}
		onChange(t)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
