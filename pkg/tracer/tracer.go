// Package tracer implements the Tracer worker: it subscribes to every
// signaling and voice topic on the Internal Bus and republishes each
// event externally for operators watching a live call in real time. Every
// event produces a pipe-delimited line for local tracing and a JSON line
// for external publication; for voice frames the JSON line is produced on
// a configurable one-in-N basis so a busy system doesn't flood the
// external subscriber.
package tracer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lmig/csserver/pkg/bus"
	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/logger"
)

// defaultChannel is the Redis pub/sub channel used when Config.Channel is
// left empty.
const defaultChannel = "csserver.trace"

// Config configures the Tracer worker.
type Config struct {
	// RedisAddr is the external publish endpoint, a host:port Redis
	// address. An empty value disables external publication entirely;
	// the delimited local trace line is still produced.
	RedisAddr string
	// Channel is the Redis pub/sub channel JSON lines are published on.
	// Defaults to defaultChannel when empty.
	Channel string
	// PublishOneJSONVoiceMsgEvery throttles voice-frame JSON lines to
	// one in every N frames seen across all calls. Values <= 1 publish
	// every frame; signaling events are never throttled.
	PublishOneJSONVoiceMsgEvery int
	// Subscriptions maps arbitrary config keys (e.g. "subscription_1")
	// to bus topic prefixes to subscribe to. A nil/empty map subscribes
	// to the default "S" (all signaling) and "V" (all voice) prefixes.
	Subscriptions map[string]string
}

func (c Config) channel() string {
	if c.Channel == "" {
		return defaultChannel
	}
	return c.Channel
}

func (c Config) every() uint64 {
	if c.PublishOneJSONVoiceMsgEvery <= 1 {
		return 1
	}
	return uint64(c.PublishOneJSONVoiceMsgEvery)
}

func (c Config) prefixes() []string {
	if len(c.Subscriptions) == 0 {
		return []string{"S", "V"}
	}
	keys := make([]string, 0, len(c.Subscriptions))
	for k := range c.Subscriptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.Subscriptions[k])
	}
	return out
}

// Publisher is the narrow surface the Tracer needs from a pub/sub client,
// so tests can substitute a fake instead of a live Redis server.
type Publisher interface {
	Publish(ctx context.Context, channel, message string) error
}

// redisPublisher adapts a go-redis client to Publisher.
type redisPublisher struct {
	client *redis.Client
}

func (p *redisPublisher) Publish(ctx context.Context, channel, message string) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// OpenRedis dials addr and validates connectivity with a Ping before
// returning, so callers fail fast at startup rather than on the first
// Publish.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("tracer: connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisPublisher wraps an already-open client as a Publisher.
func NewRedisPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

// Tracer drains signaling and voice topics and republishes them.
type Tracer struct {
	cfg Config
	bus *bus.Bus
	pub Publisher
	log *logger.Logger

	voiceSeen uint64 // atomic, total voice frames observed
}

// New creates a Tracer. pub may be nil, in which case only the local
// delimited trace line is produced and nothing is published externally.
func New(cfg Config, b *bus.Bus, pub Publisher, log *logger.Logger) *Tracer {
	return &Tracer{cfg: cfg, bus: b, pub: pub, log: log.WithComponent("tracer")}
}

// Run subscribes to the configured bus prefixes and processes messages
// until ctx is canceled.
func (t *Tracer) Run(ctx context.Context) error {
	prefixes := t.cfg.prefixes()
	subs := make([]*bus.Subscription, 0, len(prefixes))
	merged := make(chan bus.Message, 1024)

	var wg sync.WaitGroup
	for _, prefix := range prefixes {
		sub := t.bus.Subscribe(prefix, 1024)
		subs = append(subs, sub)
		wg.Add(1)
		go func(s *bus.Subscription) {
			defer wg.Done()
			for msg := range s.Messages() {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-merged:
			t.handle(ctx, msg)
		}
	}
}

// handle produces the delimited local trace line for every message and,
// subject to the voice-frame throttle, a JSON line published externally.
func (t *Tracer) handle(ctx context.Context, msg bus.Message) {
	msgType, fields := traceFields(msg)
	line := flatLine(msgType, msg.ReceivedAt, fields)
	t.log.Debug(line)

	if msg.Event.Kind == event.KindVoiceFrame {
		n := atomic.AddUint64(&t.voiceSeen, 1)
		if n%t.cfg.every() != 0 {
			return
		}
	}

	if t.pub == nil {
		return
	}

	obj := jsonObject(msgType, msg.ReceivedAt, fields)
	data, err := json.Marshal(obj)
	if err != nil {
		t.log.Warn("failed to marshal trace line", logger.Error(err), logger.String("message_type", msgType))
		return
	}
	if err := t.pub.Publish(ctx, t.cfg.channel(), string(data)); err != nil {
		t.log.Warn("failed to publish trace line", logger.Error(err), logger.String("message_type", msgType))
	}
}

// traceFields flattens one bus message into its message-type tag and a
// field set shared by both the delimited line and the JSON line.
func traceFields(msg bus.Message) (string, map[string]interface{}) {
	fields := map[string]interface{}{}

	switch p := msg.Event.Payload.(type) {
	case event.KeepAlive:
		fields["server_id"] = p.ServerID
		fields["timeout"] = p.Timeout
		fields["sw_version"] = p.SwVersionStr
	case event.DuplexCallChange:
		fields["call_id"] = p.CallID
		fields["action"] = p.Action
		fields["timeout"] = p.Timeout
		addParty(fields, "a_party", p.AParty)
		addParty(fields, "b_party", p.BParty)
	case event.DuplexCallRelease:
		fields["call_id"] = p.CallID
		fields["release_cause"] = p.ReleaseCause
	case event.SimplexCallStartChange:
		fields["call_id"] = p.CallID
		fields["action"] = p.Action
		fields["timeout"] = p.Timeout
		addParty(fields, "a_party", p.AParty)
		addParty(fields, "b_party", p.BParty)
	case event.SimplexCallPttChange:
		fields["call_id"] = p.CallID
		fields["talking_party"] = p.TalkingParty
	case event.SimplexCallRelease:
		fields["call_id"] = p.CallID
		fields["release_cause"] = p.ReleaseCause
	case event.GroupCallStartChange:
		fields["call_id"] = p.CallID
		fields["action"] = p.Action
		fields["timeout"] = p.Timeout
		addParty(fields, "group_party", p.GroupParty)
	case event.GroupCallPttActive:
		fields["call_id"] = p.CallID
		addParty(fields, "talking_party", p.TalkingParty)
	case event.GroupCallPttIdle:
		fields["call_id"] = p.CallID
	case event.GroupCallRelease:
		fields["call_id"] = p.CallID
		fields["release_cause"] = p.ReleaseCause
	case event.StatusSDS:
		addParty(fields, "a_party", p.AParty)
		addParty(fields, "b_party", p.BParty)
		fields["precoded_status_value"] = p.PrecodedStatusValue
	case event.TextSDS:
		addParty(fields, "a_party", p.AParty)
		addParty(fields, "b_party", p.BParty)
		fields["payload_length"] = len(p.Payload)
	case event.VoiceFrame:
		fields["call_id"] = p.CallID
		fields["originator"] = p.Originator
		fields["packet_sequence"] = p.PacketSequence
		fields["payload1_len"] = len(p.Payload1)
		fields["payload2_len"] = len(p.Payload2)
	}

	return string(msg.Event.Kind), fields
}

func addParty(fields map[string]interface{}, prefix string, party event.PartyIdentity) {
	if party == (event.PartyIdentity{}) {
		return
	}
	fields[prefix+"_ssi"] = party.SSI
	if party.Number != "" {
		fields[prefix+"_number"] = party.Number
	}
}

func flatLine(msgType string, receivedAt time.Time, fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+2)
	parts = append(parts, msgType, receivedAt.UTC().Format(time.RFC3339))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, "|")
}

func jsonObject(msgType string, receivedAt time.Time, fields map[string]interface{}) map[string]interface{} {
	obj := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		obj[k] = v
	}
	obj["message_type"] = msgType
	obj["received_at"] = receivedAt.UTC().Format(time.RFC3339)
	return obj
}
