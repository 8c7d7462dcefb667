// Package telemetry provides run metrics, bookmarking, event logging, and snapshots.
package telemetry

import "fmt"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventEpisodeBegin EventType = iota
	EventGoalCapture
	EventLanding
	EventFall
	EventTimeout
)

// Event represents a single telemetry event.
type Event struct {
	Type    EventType
	Tick    int64
	Episode int

	// Optional fields depending on event type
	Goals  int     // capture ordinal within the episode
	Reward float64 // capture reward, terminal penalty, or episode return
}

// NewEpisodeBeginEvent creates an episode begin event.
func NewEpisodeBeginEvent(tick int64, episode int) Event {
	return Event{
		Type:    EventEpisodeBegin,
		Tick:    tick,
		Episode: episode,
	}
}

// NewGoalCaptureEvent creates a goal capture event.
func NewGoalCaptureEvent(tick int64, episode, goals int, reward float64) Event {
	return Event{
		Type:    EventGoalCapture,
		Tick:    tick,
		Episode: episode,
		Goals:   goals,
		Reward:  reward,
	}
}

// NewLandingEvent creates a landing event (agent touched down after airtime).
func NewLandingEvent(tick int64, episode int) Event {
	return Event{
		Type:    EventLanding,
		Tick:    tick,
		Episode: episode,
	}
}

// NewFallEvent creates a fall event (agent dropped below the death height).
func NewFallEvent(tick int64, episode int, episodeReturn float64) Event {
	return Event{
		Type:    EventFall,
		Tick:    tick,
		Episode: episode,
		Reward:  episodeReturn,
	}
}

// NewTimeoutEvent creates a timeout event (episode hit the time limit).
func NewTimeoutEvent(tick int64, episode int, episodeReturn float64) Event {
	return Event{
		Type:    EventTimeout,
		Tick:    tick,
		Episode: episode,
		Reward:  episodeReturn,
	}
}

// String renders the event for log lines and interactive overlays.
func (e Event) String() string {
	switch e.Type {
	case EventEpisodeBegin:
		return fmt.Sprintf("ep %d begin", e.Episode)
	case EventGoalCapture:
		return fmt.Sprintf("ep %d goal #%d +%.2f", e.Episode, e.Goals, e.Reward)
	case EventLanding:
		return fmt.Sprintf("ep %d landing", e.Episode)
	case EventFall:
		return fmt.Sprintf("ep %d fell (return %.2f)", e.Episode, e.Reward)
	case EventTimeout:
		return fmt.Sprintf("ep %d timeout (return %.2f)", e.Episode, e.Reward)
	default:
		return fmt.Sprintf("ep %d event %d", e.Episode, e.Type)
	}
}

// EventLog keeps the most recent events in a fixed-size ring.
type EventLog struct {
	buf   []Event
	next  int
	count int
}

// NewEventLog creates a log holding up to capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity < 1 {
		capacity = 1
	}
	return &EventLog{buf: make([]Event, capacity)}
}

// Append records an event, evicting the oldest when full.
func (l *EventLog) Append(e Event) {
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
}

// Len reports how many events are currently held.
func (l *EventLog) Len() int {
	return l.count
}

// Recent returns up to n events, oldest first.
func (l *EventLog) Recent(n int) []Event {
	if n > l.count {
		n = l.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, 0, n)
	start := l.next - n
	if start < 0 {
		start += len(l.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, l.buf[(start+i)%len(l.buf)])
	}
	return out
}
