package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopresenting/status"
)

// thumbSource is a fakeSource that can also render slides.
type thumbSource struct {
	fakeSource
	data []byte
	err  error
	got  status.ThumbnailOptions
}

func (s *thumbSource) SlideThumbnail(opts status.ThumbnailOptions) ([]byte, error) {
	s.got = opts
	return s.data, s.err
}

func newTestServer(t *testing.T, src status.Source, poller *Poller, origins ...string) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(src, poller, origins, quietLogger())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp
}

func videoStatus() status.PresentationStatus {
	st := slideStatus(2, 6)
	st.IsInSlideShow = true
	st.Video = status.VideoSnapshot{
		HasVideo:    true,
		IsPlaying:   true,
		Duration:    120,
		CurrentTime: 30,
		Remaining:   90,
		Volume:      0.8,
		FileName:    "demo.mp4",
	}
	return st
}

func TestServerStatus(t *testing.T) {
	src := &fakeSource{}
	src.set(videoStatus())
	_, ts := newTestServer(t, src, nil)

	var got status.PresentationStatus
	resp := getJSON(t, ts.URL+"/api/status", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, videoStatus(), got)
}

func TestServerSlide(t *testing.T) {
	src := &fakeSource{}
	src.set(videoStatus())
	_, ts := newTestServer(t, src, nil)

	var got map[string]interface{}
	getJSON(t, ts.URL+"/api/status/slide", &got)
	assert.Equal(t, true, got["isAvailable"])
	assert.Equal(t, float64(2), got["currentSlide"])
	assert.Equal(t, float64(6), got["slideCount"])
	assert.Equal(t, float64(4), got["slidesRemaining"])
	assert.Equal(t, true, got["isInSlideShow"])
	assert.Equal(t, "Slide 2 / 6", got["info"])
	assert.NotContains(t, got, "error")

	src.set(status.Unavailable(status.MsgNoPresentation))
	got = nil
	getJSON(t, ts.URL+"/api/status/slide", &got)
	assert.Equal(t, false, got["isAvailable"])
	assert.Equal(t, status.MsgNoPresentation, got["error"])
	assert.Equal(t, float64(0), got["currentSlide"])
}

func TestServerVideo(t *testing.T) {
	src := &fakeSource{}
	src.set(videoStatus())
	_, ts := newTestServer(t, src, nil)

	var got struct {
		IsAvailable bool                 `json:"isAvailable"`
		Video       status.VideoSnapshot `json:"video"`
		Time        string               `json:"time"`
		Hours       int                  `json:"hours"`
		Minutes     int                  `json:"minutes"`
		Seconds     int                  `json:"seconds"`
	}
	getJSON(t, ts.URL+"/api/status/video", &got)
	assert.True(t, got.IsAvailable)
	assert.Equal(t, videoStatus().Video, got.Video)
	assert.Equal(t, "00:01:30", got.Time)
	assert.Equal(t, 0, got.Hours)
	assert.Equal(t, 1, got.Minutes)
	assert.Equal(t, 30, got.Seconds)

	t.Run("no video", func(t *testing.T) {
		src.set(slideStatus(1, 1))
		var raw map[string]interface{}
		getJSON(t, ts.URL+"/api/status/video", &raw)
		assert.Equal(t, "00:00:00", raw["time"])
		assert.Equal(t, map[string]interface{}{"hasVideo": false}, raw["video"])
	})
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv, ts := newTestServer(t, &fakeSource{}, nil)

	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	h := srv.Handler()
	for _, path := range []string{"/api/status", "/api/status/slide", "/api/status/video", "/api/thumbnail", "/healthz"} {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", method, path)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerThumbnail(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		src := &thumbSource{data: []byte("jpeg bytes")}
		_, ts := newTestServer(t, src, nil)

		resp, err := http.Get(ts.URL + "/api/thumbnail?format=jpg&width=640&height=360")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
		assert.Equal(t, "jpeg bytes", string(body))
		assert.Equal(t, status.ThumbnailOptions{Format: "jpg", Width: 640, Height: 360}, src.got)
	})

	t.Run("default format is png", func(t *testing.T) {
		src := &thumbSource{data: []byte{0x89}}
		_, ts := newTestServer(t, src, nil)

		resp, err := http.Get(ts.URL + "/api/thumbnail")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	})

	tests := []struct {
		name string
		src  status.Source
		path string
		code int
	}{
		{"source cannot render", &fakeSource{}, "/api/thumbnail", http.StatusNotFound},
		{"unsupported", &thumbSource{err: status.ErrUnsupported}, "/api/thumbnail", http.StatusNotFound},
		{"bad format", &thumbSource{}, "/api/thumbnail?format=webp", http.StatusBadRequest},
		{"bad width", &thumbSource{}, "/api/thumbnail?width=wide", http.StatusBadRequest},
		{"negative height", &thumbSource{}, "/api/thumbnail?height=-1", http.StatusBadRequest},
		{"too large", &thumbSource{}, "/api/thumbnail?width=10000", http.StatusBadRequest},
		{"no slide", &thumbSource{err: status.ErrNoSlide}, "/api/thumbnail", http.StatusServiceUnavailable},
		{"export failed", &thumbSource{err: errors.New("export failed")}, "/api/thumbnail", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, tt.src, nil)
			var body map[string]string
			resp := getJSON(t, ts.URL+tt.path, &body)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServerHealth(t *testing.T) {
	src := &fakeSource{}
	poller := NewPoller(src, time.Hour, quietLogger())
	_, ts := newTestServer(t, src, poller)

	var got map[string]interface{}
	getJSON(t, ts.URL+"/healthz", &got)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, float64(0), got["clients"])
	assert.NotContains(t, got, "lastPoll")

	poller.poll()
	got = nil
	getJSON(t, ts.URL+"/healthz", &got)
	assert.Contains(t, got, "lastPoll")
}

func TestServerCORS(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{}, nil, "http://companion.local")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://companion.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://companion.local", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://other.local")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func readEvent(t *testing.T, conn *websocket.Conn) (Event, status.PresentationStatus) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw struct {
		Type      string                    `json:"type"`
		Timestamp time.Time                 `json:"timestamp"`
		Data      status.PresentationStatus `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&raw))
	return Event{Type: raw.Type, Timestamp: raw.Timestamp}, raw.Data
}

func TestServerWebSocket(t *testing.T) {
	src := &fakeSource{}
	src.set(slideStatus(5, 12))
	s, ts := newTestServer(t, src, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	ev, st := readEvent(t, conn)
	assert.Equal(t, "status", ev.Type)
	assert.Equal(t, slideStatus(5, 12), st)

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.hub.Broadcast(statusEvent(slideStatus(6, 12), time.Now()))
	_, st = readEvent(t, conn)
	assert.Equal(t, 6, st.CurrentSlide)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerWebSocketUsesPollerSnapshot(t *testing.T) {
	src := &fakeSource{}
	src.set(slideStatus(1, 3))
	poller := NewPoller(src, time.Hour, quietLogger())
	poller.poll()

	// The source moved on but the poller has not seen it yet
	src.set(slideStatus(2, 3))
	_, ts := newTestServer(t, src, poller)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, st := readEvent(t, conn)
	assert.Equal(t, 1, st.CurrentSlide)
}

func TestServerWebSocketRejectsOrigin(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{}, nil, "http://companion.local")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "HTTP://COMPANION.LOCAL")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	conn.Close()
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub(quietLogger())
	c := &wsClient{id: "a", send: make(chan Event, 1), hub: h}
	h.register(c)
	assert.Equal(t, 1, h.ClientCount())

	h.CloseAll()
	assert.Equal(t, 0, h.ClientCount())
	_, open := <-c.send
	assert.False(t, open)

	// A late unregister from the read pump is a no-op
	h.unregister("a")
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub(quietLogger())
	c := &wsClient{id: "slow", send: make(chan Event, 1), hub: h}
	h.register(c)

	h.Broadcast(statusEvent(slideStatus(1, 2), time.Now()))
	assert.Equal(t, 1, h.ClientCount())
	h.Broadcast(statusEvent(slideStatus(2, 2), time.Now()))
	assert.Equal(t, 0, h.ClientCount())
}

func TestServerListenAndServe(t *testing.T) {
	t.Run("stops on cancel", func(t *testing.T) {
		src := &fakeSource{}
		poller := NewPoller(src, time.Hour, quietLogger())
		s := NewServer(src, poller, nil, quietLogger())

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

		time.Sleep(50 * time.Millisecond)
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("bad address", func(t *testing.T) {
		s := NewServer(&fakeSource{}, nil, nil, quietLogger())
		err := s.ListenAndServe(context.Background(), "127.0.0.1:-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status server")
	})
}

func TestNewServerDefaultsOrigins(t *testing.T) {
	s := NewServer(&fakeSource{}, nil, nil, quietLogger())
	assert.Equal(t, []string{"*"}, s.origins)
}
