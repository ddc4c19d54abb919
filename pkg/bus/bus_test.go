package bus

import (
	"context"
	"testing"
	"time"

	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/logger"
)

func TestBus_New(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	b := New(log)
	if b == nil {
		t.Fatal("New returned nil")
	}
}

func TestBus_Run(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	b := New(log)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go b.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
}

func TestBus_PrefixMatchDelivery(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	b := New(log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go b.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	allSignaling := b.Subscribe("S", 4)
	oneMsgID := b.Subscribe(SignalingTopic(11), 4)
	allVoice := b.Subscribe("V", 4)
	time.Sleep(20 * time.Millisecond)

	b.Publish(Message{Topic: SignalingTopic(1), Event: event.Event{Kind: event.KindKeepAlive}})
	b.Publish(Message{Topic: SignalingTopic(11), Event: event.Event{Kind: event.KindStatusSDS}})
	b.Publish(Message{Topic: VoiceTopic(42), Voice: make([]byte, 480)})

	select {
	case msg := <-allSignaling.Messages():
		if msg.Topic != SignalingTopic(1) {
			t.Errorf("expected first signaling message to be %s, got %s", SignalingTopic(1), msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first signaling message")
	}
	select {
	case msg := <-allSignaling.Messages():
		if msg.Topic != SignalingTopic(11) {
			t.Errorf("expected second signaling message to be %s, got %s", SignalingTopic(11), msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second signaling message")
	}

	select {
	case msg := <-oneMsgID.Messages():
		if msg.Topic != SignalingTopic(11) {
			t.Errorf("expected only StatusSDS on the message-id-specific subscription, got %s", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message-id-specific subscription")
	}
	select {
	case <-oneMsgID.Messages():
		t.Fatal("message-id-specific subscription should not have received the KeepAlive message")
	default:
	}

	select {
	case msg := <-allVoice.Messages():
		if msg.Topic != VoiceTopic(42) {
			t.Errorf("expected voice topic %s, got %s", VoiceTopic(42), msg.Topic)
		}
		if len(msg.Voice) != 480 {
			t.Errorf("expected 480-byte voice payload, got %d", len(msg.Voice))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for voice message")
	}
}

func TestBus_CallSpecificVoiceSubscriptionFiltersOtherCalls(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	b := New(log)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go b.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	sub := b.Subscribe(VoiceTopic(42), 4)
	time.Sleep(20 * time.Millisecond)

	b.Publish(Message{Topic: VoiceTopic(99), Voice: make([]byte, 480)})
	b.Publish(Message{Topic: VoiceTopic(42), Voice: make([]byte, 480)})

	select {
	case msg := <-sub.Messages():
		if msg.Topic != VoiceTopic(42) {
			t.Fatalf("expected only call 42's voice, got %s", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for call 42's voice")
	}

	select {
	case msg := <-sub.Messages():
		t.Fatalf("did not expect a second message, got %+v", msg)
	default:
	}
}

func TestBus_CloseStopsDelivery(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	b := New(log)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go b.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	sub := b.Subscribe("S", 4)
	time.Sleep(20 * time.Millisecond)
	if got := b.SubscriberCount(); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	sub.Close()
	time.Sleep(20 * time.Millisecond)
	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("expected 0 subscribers after Close, got %d", got)
	}

	// the channel should now be closed, not just empty
	_, open := <-sub.Messages()
	if open {
		t.Fatal("expected subscription channel to be closed")
	}
}

func TestBus_SlowSubscriberDropsRatherThanBlocksPublisher(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	b := New(log)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go b.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	sub := b.Subscribe("S", 1) // tiny buffer, never drained
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.Publish(Message{Topic: SignalingTopic(uint8(i))})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber instead of dropping")
	}
	_ = sub
}
