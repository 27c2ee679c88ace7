package events

import (
	"testing"

	"riskpool/core/types"
)

type stubEvent struct{ kind string }

func (s stubEvent) EventType() string { return s.kind }

func (s stubEvent) Event() *types.Event {
	return &types.Event{Type: s.kind, Attributes: map[string]string{}}
}

func TestMultiEmitterFansOut(t *testing.T) {
	first := &CaptureEmitter{}
	second := &CaptureEmitter{}
	multi := MultiEmitter{first, nil, second, NoopEmitter{}}

	multi.Emit(stubEvent{kind: "a"})
	multi.Emit(stubEvent{kind: "b"})

	for _, capture := range []*CaptureEmitter{first, second} {
		if len(capture.Events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(capture.Events))
		}
		if capture.Events[0].EventType() != "a" || capture.Events[1].EventType() != "b" {
			t.Fatalf("events out of order: %v", capture.Events)
		}
	}
}

func TestCaptureEmitterIgnoresNil(t *testing.T) {
	capture := &CaptureEmitter{}
	capture.Emit(nil)
	capture.Emit(stubEvent{kind: "a"})
	if len(capture.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(capture.Events))
	}

	var absent *CaptureEmitter
	absent.Emit(stubEvent{kind: "a"})
}
