package status

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RemoteSource reads snapshots from a gopresenting status server running on
// the machine that hosts PowerPoint.
type RemoteSource struct {
	base   string
	client *http.Client
}

// NewRemoteSource returns a source for the server at baseURL
// (for example http://10.0.0.5:8787). A zero timeout defaults to 2s.
func NewRemoteSource(baseURL string, timeout time.Duration) (*RemoteSource, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q: want http(s)://host:port", baseURL)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RemoteSource{
		base:   strings.TrimRight(u.String(), "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

// GetPresentationStatus fetches /api/status. Transport and decoding errors
// are reported as an unavailable snapshot.
func (r *RemoteSource) GetPresentationStatus() PresentationStatus {
	resp, err := r.client.Get(r.base + "/api/status")
	if err != nil {
		return Unavailable(fmt.Sprintf("remote unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Unavailable(fmt.Sprintf("remote returned status %d", resp.StatusCode))
	}

	var st PresentationStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Unavailable(fmt.Sprintf("remote sent invalid status: %v", err))
	}
	if st.IsAvailable {
		st.Video = st.Video.normalize()
	}
	return st
}

// SlideThumbnail fetches /api/thumbnail.
func (r *RemoteSource) SlideThumbnail(opts ThumbnailOptions) ([]byte, error) {
	q := url.Values{}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	if opts.Width > 0 {
		q.Set("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("height", strconv.Itoa(opts.Height))
	}
	target := r.base + "/api/thumbnail"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	resp, err := r.client.Get(target)
	if err != nil {
		return nil, fmt.Errorf("fetching thumbnail: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNotImplemented:
		return nil, ErrUnsupported
	default:
		return nil, fmt.Errorf("thumbnail request failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail data: %w", err)
	}
	return data, nil
}
