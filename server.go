package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"gopresenting/status"
)

// Server exposes presentation status over HTTP and websocket.
type Server struct {
	source  status.Source
	poller  *Poller
	hub     *Hub
	origins []string
	logger  *log.Logger
}

func NewServer(source status.Source, poller *Poller, origins []string, logger *log.Logger) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		source:  source,
		poller:  poller,
		hub:     NewHub(logger),
		origins: origins,
		logger:  logger,
	}
}

// slideResponse is the body of /api/status/slide.
type slideResponse struct {
	IsAvailable     bool   `json:"isAvailable"`
	Error           string `json:"error,omitempty"`
	CurrentSlide    int    `json:"currentSlide"`
	SlideCount      int    `json:"slideCount"`
	SlidesRemaining int    `json:"slidesRemaining"`
	IsInSlideShow   bool   `json:"isInSlideShow"`
	Info            string `json:"info"`
}

// videoResponse is the body of /api/status/video. Time and its parts
// count down the remaining playback time.
type videoResponse struct {
	IsAvailable bool                 `json:"isAvailable"`
	Error       string               `json:"error,omitempty"`
	Video       status.VideoSnapshot `json:"video"`
	Time        string               `json:"time"`
	Hours       int                  `json:"hours"`
	Minutes     int                  `json:"minutes"`
	Seconds     int                  `json:"seconds"`
}

func newSlideResponse(st status.PresentationStatus) slideResponse {
	if !st.IsAvailable {
		return slideResponse{Error: st.Error}
	}
	return slideResponse{
		IsAvailable:     true,
		CurrentSlide:    st.CurrentSlide,
		SlideCount:      st.SlideCount,
		SlidesRemaining: st.SlidesRemaining,
		IsInSlideShow:   st.IsInSlideShow,
		Info:            slideInfo(st.CurrentSlide, st.SlideCount),
	}
}

func newVideoResponse(st status.PresentationStatus) videoResponse {
	resp := videoResponse{IsAvailable: st.IsAvailable, Error: st.Error, Time: formatClock(0)}
	if !st.IsAvailable {
		return resp
	}
	resp.Video = st.Video
	if st.Video.HasVideo {
		resp.Hours, resp.Minutes, resp.Seconds = clockParts(st.Video.Remaining)
		resp.Time = formatClock(st.Video.Remaining)
	}
	return resp
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	// Routes stay flat: a PathPrefix subrouter lets a later sibling clear
	// the method mismatch and wrong-method requests end up as 404.
	router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/status/slide", s.handleSlide).Methods(http.MethodGet)
	router.HandleFunc("/api/status/video", s.handleVideo).Methods(http.MethodGet)
	router.HandleFunc("/api/thumbnail", s.handleThumbnail).Methods(http.MethodGet)

	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	return c.Handler(router)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. The poller, when set, feeds the websocket hub.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.poller != nil {
		updates, unsubscribe := s.poller.Subscribe()
		defer unsubscribe()
		go s.hub.Run(ctx, updates)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.GetPresentationStatus())
}

func (s *Server) handleSlide(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSlideResponse(s.source.GetPresentationStatus()))
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newVideoResponse(s.source.GetPresentationStatus()))
}

var thumbnailContentTypes = map[string]string{
	"PNG": "image/png",
	"JPG": "image/jpeg",
	"GIF": "image/gif",
	"BMP": "image/bmp",
	"TIF": "image/tiff",
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	th, ok := s.source.(status.Thumbnailer)
	if !ok {
		writeError(w, http.StatusNotFound, "thumbnails not supported by this source")
		return
	}

	q := r.URL.Query()
	opts := status.ThumbnailOptions{Format: q.Get("format")}
	filter, err := status.ExportFilter(opts.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Width, err = queryInt(q, "width"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Height, err = queryInt(q, "height"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := th.SlideThumbnail(opts)
	if err != nil {
		if errors.Is(err, status.ErrUnsupported) {
			writeError(w, http.StatusNotFound, "thumbnails not supported by this source")
			return
		}
		s.logger.Debug("thumbnail export failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	w.Header().Set("Content-Type", thumbnailContentTypes[filter])
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func queryInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 8192 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	}
	if s.poller != nil {
		if _, at, ok := s.poller.Latest(); ok {
			resp["lastPoll"] = at
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.allowedOrigin,
	}
}

// allowedOrigin applies the CORS origin list to websocket upgrades.
func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	s.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan Event, 64),
		hub:  s.hub,
	}

	// Queue the current snapshot before the client can receive broadcasts.
	client.send <- s.currentEvent()
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// currentEvent is the snapshot sent on connect: the poller's latest when
// it has one, otherwise a fresh query.
func (s *Server) currentEvent() Event {
	if s.poller != nil {
		if st, at, ok := s.poller.Latest(); ok {
			return statusEvent(st, at)
		}
	}
	return statusEvent(s.source.GetPresentationStatus(), time.Now())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Hijack lets websocket upgrades through the logging wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"bytes", wrapped.size,
			"duration", time.Since(start),
		)
	})
}
