package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"

	"gopresenting/status"
)

// oscSender is the part of *osc.Client the publisher needs.
type oscSender interface {
	Send(packet osc.Packet) error
}

// OSCPublisher mirrors every snapshot to a Companion instance over OSC.
type OSCPublisher struct {
	client oscSender
	target string
	logger *log.Logger
}

func NewOSCPublisher(host string, port int, logger *log.Logger) *OSCPublisher {
	return &OSCPublisher{
		client: osc.NewClient(host, port),
		target: fmt.Sprintf("%s:%d", host, port),
		logger: logger,
	}
}

func oscBool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// oscMessages builds the per-field messages for st. Counts are int32,
// booleans int32 0/1 and times float32 seconds.
func oscMessages(st status.PresentationStatus) []*osc.Message {
	msgs := []*osc.Message{
		osc.NewMessage("/powerpoint/available", oscBool(st.IsAvailable)),
		osc.NewMessage("/powerpoint/inSlideShow", oscBool(st.IsInSlideShow)),
		osc.NewMessage("/powerpoint/slide/current", int32(st.CurrentSlide)),
		osc.NewMessage("/powerpoint/slide/count", int32(st.SlideCount)),
		osc.NewMessage("/powerpoint/slide/remaining", int32(st.SlidesRemaining)),
		osc.NewMessage("/powerpoint/slide/info", slideInfo(st.CurrentSlide, st.SlideCount)),
	}

	v := st.Video
	msgs = append(msgs, osc.NewMessage("/powerpoint/video/hasVideo", oscBool(v.HasVideo)))
	if !v.HasVideo {
		return msgs
	}

	h, m, s := clockParts(v.Remaining)
	return append(msgs,
		osc.NewMessage("/powerpoint/video/isPlaying", oscBool(v.IsPlaying)),
		osc.NewMessage("/powerpoint/video/currentTime", float32(v.CurrentTime)),
		osc.NewMessage("/powerpoint/video/duration", float32(v.Duration)),
		osc.NewMessage("/powerpoint/video/remainingTime", float32(v.Remaining)),
		osc.NewMessage("/powerpoint/video/hours", int32(h)),
		osc.NewMessage("/powerpoint/video/minutes", int32(m)),
		osc.NewMessage("/powerpoint/video/seconds", int32(s)),
		osc.NewMessage("/powerpoint/video/time", formatClock(v.Remaining)),
	)
}

// Publish sends every message for st. Sending stops at the first failure.
func (o *OSCPublisher) Publish(st status.PresentationStatus) error {
	for _, msg := range oscMessages(st) {
		if err := o.client.Send(msg); err != nil {
			return fmt.Errorf("sending %s to %s: %w", msg.Address, o.target, err)
		}
	}
	return nil
}

// Run publishes each update until ctx is done or updates is closed.
func (o *OSCPublisher) Run(ctx context.Context, updates <-chan Update) {
	o.logger.Info("sending OSC", "target", o.target)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := o.Publish(u.Status); err != nil {
				o.logger.Warn("OSC publish failed", "err", err)
				continue
			}
			o.logger.Debug("OSC sent", "slide", u.Status.CurrentSlide, "count", u.Status.SlideCount)
		}
	}
}
