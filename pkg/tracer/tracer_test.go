package tracer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lmig/csserver/pkg/bus"
	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/logger"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	messages []string
}

func (f *fakePublisher) Publish(ctx context.Context, channel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message)
	return nil
}

func newTestTracer(cfg Config, pub Publisher) *Tracer {
	log := logger.New(logger.Config{Level: "error"})
	return New(cfg, bus.New(log), pub, log)
}

func TestTracer_SignalingEventIsNeverThrottled(t *testing.T) {
	pub := &fakePublisher{}
	tr := newTestTracer(Config{}, pub)

	for i := 0; i < 5; i++ {
		tr.handle(context.Background(), bus.Message{
			Topic:      "S_1",
			ReceivedAt: time.Now(),
			Event: event.Event{
				Kind:    event.KindKeepAlive,
				Payload: event.KeepAlive{ServerID: 7, Timeout: 30},
			},
		})
	}

	if len(pub.messages) != 5 {
		t.Fatalf("expected every signaling event published, got %d", len(pub.messages))
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(pub.messages[0]), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got error: %v", err)
	}
	if decoded["message_type"] != string(event.KindKeepAlive) {
		t.Errorf("expected message_type %q, got %v", event.KindKeepAlive, decoded["message_type"])
	}
	if decoded["server_id"].(float64) != 7 {
		t.Errorf("expected server_id 7, got %v", decoded["server_id"])
	}
}

func TestTracer_VoiceFrameThrottledToOneInN(t *testing.T) {
	pub := &fakePublisher{}
	tr := newTestTracer(Config{PublishOneJSONVoiceMsgEvery: 4}, pub)

	for i := 0; i < 12; i++ {
		tr.handle(context.Background(), bus.Message{
			Topic:      "V_100",
			ReceivedAt: time.Now(),
			Event: event.Event{
				Kind: event.KindVoiceFrame,
				Payload: event.VoiceFrame{
					CallID:         100,
					Originator:     event.OriginatorA,
					PacketSequence: uint16(i),
					Payload1:       make([]byte, 480),
				},
			},
			Voice: make([]byte, 480),
		})
	}

	if len(pub.messages) != 3 {
		t.Fatalf("expected 12/4 = 3 JSON lines published, got %d", len(pub.messages))
	}
}

func TestTracer_VoiceFrameWithoutThrottleConfiguredPublishesEvery(t *testing.T) {
	pub := &fakePublisher{}
	tr := newTestTracer(Config{}, pub)

	for i := 0; i < 3; i++ {
		tr.handle(context.Background(), bus.Message{
			ReceivedAt: time.Now(),
			Event: event.Event{
				Kind:    event.KindVoiceFrame,
				Payload: event.VoiceFrame{CallID: 1, Payload1: make([]byte, 480)},
			},
		})
	}

	if len(pub.messages) != 3 {
		t.Fatalf("expected every frame published when every<=1, got %d", len(pub.messages))
	}
}

func TestTracer_NilPublisherOnlyProducesLocalLine(t *testing.T) {
	tr := newTestTracer(Config{}, nil)

	tr.handle(context.Background(), bus.Message{
		ReceivedAt: time.Now(),
		Event: event.Event{
			Kind:    event.KindKeepAlive,
			Payload: event.KeepAlive{ServerID: 1},
		},
	})
}

func TestTracer_FlatLineIsPipeDelimitedAndSorted(t *testing.T) {
	msgType, fields := traceFields(bus.Message{
		Event: event.Event{
			Kind: event.KindSimplexCallPttChange,
			Payload: event.SimplexCallPttChange{
				CallID:       42,
				TalkingParty: event.TalkingA,
			},
		},
	})

	line := flatLine(msgType, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), fields)
	want := "SimplexCallPttChange|2026-01-01T00:00:00Z|call_id=42|talking_party=1"
	if line != want {
		t.Errorf("expected %q, got %q", want, line)
	}
}

func TestConfig_PrefixesDefaultToSignalingAndVoice(t *testing.T) {
	cfg := Config{}
	got := cfg.prefixes()
	if len(got) != 2 || got[0] != "S" || got[1] != "V" {
		t.Errorf("expected default prefixes [S V], got %v", got)
	}
}

func TestConfig_PrefixesFollowSubscriptionKeyOrder(t *testing.T) {
	cfg := Config{Subscriptions: map[string]string{
		"subscription_2": "V",
		"subscription_1": "S_1",
	}}
	got := cfg.prefixes()
	if len(got) != 2 || got[0] != "S_1" || got[1] != "V" {
		t.Errorf("expected subscription_1 then subscription_2 order, got %v", got)
	}
}

func TestTracer_RunDeliversPublishedBusMessages(t *testing.T) {
	pub := &fakePublisher{}
	log := logger.New(logger.Config{Level: "error"})
	b := bus.New(log)
	tr := New(Config{}, b, pub, log)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)

	runDone := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(runDone)
	}()

	// Give the Tracer's subscriptions time to register before publishing.
	time.Sleep(20 * time.Millisecond)

	b.Publish(bus.Message{
		Topic:      "S_1",
		ReceivedAt: time.Now(),
		Event: event.Event{
			Kind:    event.KindKeepAlive,
			Payload: event.KeepAlive{ServerID: 9},
		},
	})

	deadline := time.After(time.Second)
	for {
		pub.mu.Lock()
		n := len(pub.messages)
		pub.mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the Tracer to publish the keep-alive")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-runDone
}
