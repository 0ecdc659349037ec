package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/termcam/internal/events"
)

// eventTypes names the SSE "event:" field for each bus event.
var eventTypes = map[string]any{
	"capture-state":     events.CaptureStateChangedEvent{},
	"capture-error":     events.CaptureErrorEvent{},
	"capture-timeout":   events.CaptureTimeoutEvent{},
	"frame-stats":       events.FrameStatsEvent{},
	"format-negotiated": events.FormatNegotiatedEvent{},
}

// registerEventRoutes streams bus events to clients. Slow clients lose
// events rather than stall the capture loop.
func (s *server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Capture event stream",
		Description: "State changes, errors, timeouts and periodic frame statistics",
		Tags:        []string{"capture"},
	}, eventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		ch := make(chan any, 16)
		bus := s.options.Events
		unsubs := []func(){
			events.SubscribeToChannel[events.CaptureStateChangedEvent](bus, ch),
			events.SubscribeToChannel[events.CaptureErrorEvent](bus, ch),
			events.SubscribeToChannel[events.CaptureTimeoutEvent](bus, ch),
			events.SubscribeToChannel[events.FrameStatsEvent](bus, ch),
			events.SubscribeToChannel[events.FormatNegotiatedEvent](bus, ch),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-ch:
				if err := send.Data(e); err != nil {
					return
				}
			}
		}
	})
}
