package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"inkwash/pkg/config"
	"inkwash/pkg/models"
	"inkwash/pkg/store"
	"inkwash/pkg/tilemap"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(t.TempDir(), store.Options{
		TileSize: tilemap.DefaultTileSize,
		MaxInk:   250000,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := NewServer(ctx, st, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func saveBody(userInk float64) []byte {
	body, _ := json.Marshal(map[string]any{
		"user":     "u-1",
		"totalInk": userInk,
		"tiles": map[string][]models.StrokeRecord{
			"0_0": {{
				Points:    []float64{0, 0, 5, 100, 0, 5},
				Color:     "#000000",
				Timestamp: time.Now().UnixMilli(),
				InkUsed:   userInk,
			}},
		},
	})
	return body
}

func TestSaveThenGetTile(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/v1/strokes", "application/json", bytes.NewReader(saveBody(500)))
	if err != nil {
		t.Fatalf("post strokes: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/v1/tiles/0_0")
	if err != nil {
		t.Fatalf("get tile: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var tile models.Tile
	if err := json.NewDecoder(resp.Body).Decode(&tile); err != nil {
		t.Fatalf("decode tile: %v", err)
	}
	if len(tile.Strokes) != 1 || tile.Strokes[0].InkUsed != 500 {
		t.Fatalf("tile: %+v", tile)
	}
	if tile.Bounds.MaxX != tilemap.DefaultTileSize {
		t.Fatalf("bounds: %+v", tile.Bounds)
	}
}

func TestGetTileMalformedKey(t *testing.T) {
	ts := testServer(t)
	resp, err := http.Get(ts.URL + "/v1/tiles/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed key status = %d", resp.StatusCode)
	}
}

func TestSaveRejections(t *testing.T) {
	ts := testServer(t)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{nope", http.StatusBadRequest},
		{"missing user", `{"totalInk":0,"tiles":{"0_0":[]}}`, http.StatusBadRequest},
		{"empty tiles", `{"user":"u-1","totalInk":0,"tiles":{}}`, http.StatusBadRequest},
		{"bad record", `{"user":"u-1","totalInk":0,"tiles":{"0_0":[{"points":[1,2,3],"timestamp":5}]}}`, http.StatusBadRequest},
		{"negative ink", `{"user":"u-1","totalInk":-5,"tiles":{"0_0":[]}}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		resp, err := http.Post(ts.URL+"/v1/strokes", "application/json", strings.NewReader(c.body))
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != c.want {
			t.Fatalf("%s: status = %d, want %d", c.name, resp.StatusCode, c.want)
		}
	}
}

func TestAccountBootstrapAndDebit(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/v1/ink/u-1?country=US")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	var acct models.InkAccount
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	resp.Body.Close()
	if acct.InkRemaining != 250000 || acct.Country != "US" {
		t.Fatalf("bootstrap account: %+v", acct)
	}

	resp, err = http.Post(ts.URL+"/v1/strokes", "application/json", bytes.NewReader(saveBody(1000)))
	if err != nil {
		t.Fatalf("post strokes: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/v1/ink/u-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	json.NewDecoder(resp.Body).Decode(&acct)
	resp.Body.Close()
	if acct.InkRemaining != 249000 {
		t.Fatalf("balance = %g, want 249000", acct.InkRemaining)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	ts := testServer(t)

	// seed one stroke two days old and one fresh
	oldRec := models.StrokeRecord{
		Points:    []float64{0, 0, 5, 10, 0, 5},
		Timestamp: time.Now().Add(-48 * time.Hour).UnixMilli(),
	}
	freshRec := models.StrokeRecord{
		Points:    []float64{20, 20, 5, 30, 30, 5},
		Timestamp: time.Now().UnixMilli(),
	}
	body, _ := json.Marshal(map[string]any{
		"user": "u-1", "totalInk": 0,
		"tiles": map[string][]models.StrokeRecord{"0_0": {oldRec, freshRec}},
	})
	resp, err := http.Post(ts.URL+"/v1/strokes", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/v1/tiles/0_0/cleanup", "application/json",
		strings.NewReader(`{"maxAgeMs":86400000}`))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cleanup status = %d", resp.StatusCode)
	}
	var out struct {
		Removed int `json:"removed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode cleanup: %v", err)
	}
	if out.Removed != 1 {
		t.Fatalf("removed = %d, want 1", out.Removed)
	}

	// non-positive age is rejected
	resp, err = http.Post(ts.URL+"/v1/tiles/0_0/cleanup", "application/json",
		strings.NewReader(`{"maxAgeMs":0}`))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero age status = %d", resp.StatusCode)
	}
}

// TestSubscribeStream attaches a websocket subscriber and checks it gets
// the full tile state on attach and again after a save.
func TestSubscribeStream(t *testing.T) {
	ts := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/subscribe?tile=0_0"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readTile := func() models.Tile {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var tile models.Tile
		if err := json.Unmarshal(payload, &tile); err != nil {
			t.Fatalf("decode push: %v", err)
		}
		return tile
	}

	initial := readTile()
	if len(initial.Strokes) != 0 {
		t.Fatalf("initial state: %+v", initial)
	}

	resp, err := http.Post(ts.URL+"/v1/strokes", "application/json", bytes.NewReader(saveBody(100)))
	if err != nil {
		t.Fatalf("post strokes: %v", err)
	}
	resp.Body.Close()

	update := readTile()
	if len(update.Strokes) != 1 {
		t.Fatalf("update state: %+v", update)
	}
}

func TestSubscribeMalformedKey(t *testing.T) {
	ts := testServer(t)
	resp, err := http.Get(ts.URL + "/v1/subscribe?tile=zzz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
