// Package events defines execution events and the publishers that emit them.
package events

import (
	"time"

	"github.com/morezero/usecase-executor/pkg/execution"
)

// ExecutedEvent is emitted after every use-case invocation.
type ExecutedEvent struct {
	UseCase           string `json:"useCase"`
	Key               string `json:"key,omitempty"`
	InputProcessor    string `json:"inputProcessor,omitempty"`
	ResponseProcessor string `json:"responseProcessor,omitempty"`
	Outcome           string `json:"outcome"`
	DurationMs        int64  `json:"durationMs"`
	Error             string `json:"error,omitempty"`
	Timestamp         string `json:"timestamp"`
	Source            string `json:"source,omitempty"`
}

// NewExecutedEvent builds an ExecutedEvent from an execution record.
func NewExecutedEvent(rec execution.Record, source string) *ExecutedEvent {
	ev := &ExecutedEvent{
		UseCase:           rec.UseCase,
		Key:               rec.Key,
		InputProcessor:    rec.InputProcessor,
		ResponseProcessor: rec.ResponseProcessor,
		Outcome:           string(rec.Outcome),
		DurationMs:        rec.Duration.Milliseconds(),
		Timestamp:         rec.StartedAt.UTC().Format(time.RFC3339Nano),
		Source:            source,
	}
	if rec.Err != nil {
		ev.Error = rec.Err.Error()
	}
	return ev
}
