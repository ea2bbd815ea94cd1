package search

import (
	"fmt"

	"github.com/xtding233/gacha-seeker/internal/gacha"
)

// EventKind tags an Event.
type EventKind uint8

const (
	// EventFound reports one matching seed.
	EventFound EventKind = iota + 1
	// EventProgress reports Processed more positions consumed by a task since its last progress.
	EventProgress
	// EventStopFound ends a task that found a match under StopOnFirstFound.
	EventStopFound
	// EventDone ends a task that covered its range or was cancelled.
	EventDone
	// EventError reports a request that could not start.
	EventError
)

var eventNames = [...]string{
	EventFound:     "found",
	EventProgress:  "progress",
	EventStopFound: "stop_found",
	EventDone:      "done",
	EventError:     "error",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) && eventNames[k] != "" {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", k)
}

// Hit is one matching start seed. Salvage searches also report the discarded duplicate.
type Hit struct {
	Seed         uint32
	Duplicate    gacha.ItemID
	HasDuplicate bool
}

// Event is one message of a search stream. Which fields are set depends on Kind:
//
//	Found      Task, Hit
//	Progress   Task, Processed (delta)
//	StopFound  Task, Hit, Processed (task total), ResumeSeed
//	Done       Task, Processed (task total), ResumeSeed, Canceled
//	Error      Reason
type Event struct {
	Kind EventKind
	Task int
	Hit
	Processed  uint64
	ResumeSeed uint32
	Canceled   bool
	Reason     string
}

// ErrorEvent converts a failure to start a search into its stream form.
func ErrorEvent(err error) Event {
	return Event{Kind: EventError, Reason: err.Error()}
}

// Terminal reports whether e ends its task's part of the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventStopFound || e.Kind == EventDone || e.Kind == EventError
}
