package task

import "github.com/MimeLyc/segmented-transcript-translator/internal/transcript"

// Event is pushed to the Progress Sink on every meaningful
// transition: segment completion, phase change, completion, failure.
type Event struct {
	TaskID   string             `json:"task_id"`
	Stage    string             `json:"stage"`
	Status   Status             `json:"status"`
	Progress int                `json:"progress"`
	Result   []transcript.Entry `json:"result,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// Sink receives progress events. The transport fanning events out to
// subscribers lives outside the core; implementations must not block.
type Sink interface {
	OnTaskEvent(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) OnTaskEvent(event Event) { f(event) }
