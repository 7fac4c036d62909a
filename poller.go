package main

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"gopresenting/status"
)

// Update is one published snapshot.
type Update struct {
	Status status.PresentationStatus
	Time   time.Time
}

// Poller queries a source on a fixed interval and fans changed snapshots
// out to subscribers.
type Poller struct {
	source   status.Source
	interval time.Duration
	logger   *log.Logger

	mu       sync.RWMutex
	latest   Update
	hasValue bool
	subs     map[int]chan Update
	nextID   int
}

// subscriberBuffer is how many updates a slow subscriber may fall behind
// before updates are dropped for it.
const subscriberBuffer = 16

// NewPoller creates a poller. A non-positive interval defaults to one second.
func NewPoller(source status.Source, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		source:   source,
		interval: interval,
		logger:   logger,
		subs:     make(map[int]chan Update),
	}
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one query and publishes it if it differs from the last one.
// It reports whether subscribers were notified.
func (p *Poller) poll() bool {
	st := p.source.GetPresentationStatus()
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasValue && p.latest.Status == st {
		return false
	}
	if p.hasValue && p.latest.Status.IsAvailable != st.IsAvailable {
		if st.IsAvailable {
			p.logger.Info("presentation available", "slide", st.CurrentSlide, "count", st.SlideCount)
		} else {
			p.logger.Info("presentation unavailable", "reason", st.Error)
		}
	}

	p.latest = Update{Status: st, Time: now}
	p.hasValue = true
	for id, ch := range p.subs {
		select {
		case ch <- p.latest:
		default:
			p.logger.Debug("subscriber behind, dropping update", "id", id)
		}
	}
	return true
}

// Subscribe registers a listener for changed snapshots. The returned func
// unregisters it and closes the channel.
func (p *Poller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Latest returns the last published snapshot and when it was taken.
// ok is false before the first poll.
func (p *Poller) Latest() (status.PresentationStatus, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest.Status, p.latest.Time, p.hasValue
}
