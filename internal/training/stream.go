package training

import (
	"context"
	"errors"
	"time"

	"github.com/tourguard/riskcast/internal/domain"
)

// ErrStreamBusy is returned when a second consumer subscribes to the progress stream.
var ErrStreamBusy = errors.New("progress stream already has a consumer")

// Message is one item of the progress stream: an event or a heartbeat.
type Message struct {
	Event     *domain.ProgressEvent
	Heartbeat bool
}

// Payload returns the JSON-ready body of the message.
func (m Message) Payload() interface{} {
	if m.Heartbeat || m.Event == nil {
		return map[string]bool{"heartbeat": true}
	}
	return m.Event
}

// Terminal reports whether the message ends the stream.
func (m Message) Terminal() bool {
	return m.Event != nil && m.Event.Terminal()
}

// Stream is the single consumer of job progress. Events arrive in production
// order; a heartbeat is produced whenever no event arrives within the interval.
type Stream struct {
	c         *Coordinator
	job       *job
	heartbeat time.Duration
	closed    bool
}

// Subscribe claims the progress stream. Only one stream may be open at a time.
func (c *Coordinator) Subscribe() (*Stream, error) {
	if !c.consumer.CompareAndSwap(false, true) {
		return nil, ErrStreamBusy
	}
	return &Stream{c: c, job: c.current.Load(), heartbeat: c.cfg.Heartbeat}, nil
}

// Close releases the stream so another consumer can subscribe.
func (s *Stream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.c.consumer.Store(false)
}

// bind moves the stream to the newest job once the one it follows is fully read.
func (s *Stream) bind() *job {
	latest := s.c.current.Load()
	if s.job == nil || (s.job != latest && s.job.drained()) {
		s.job = latest
	}
	return s.job
}

// Next blocks until the next event or the heartbeat interval elapses.
func (s *Stream) Next(ctx context.Context) (Message, error) {
	timer := time.NewTimer(s.heartbeat)
	defer timer.Stop()

	for {
		changed := s.c.changes()
		var events <-chan domain.ProgressEvent
		if j := s.bind(); j != nil {
			events = j.events
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case ev := <-events:
			return Message{Event: &ev}, nil
		case <-timer.C:
			return Message{Heartbeat: true}, nil
		case <-changed:
			// a job was admitted; rebind and keep waiting
		}
	}
}
