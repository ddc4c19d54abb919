// Package ingestor implements the Ingestor: the UDP-facing worker that owns
// the collector ingress socket, drives the Frame Parser over a rolling
// byte buffer, and publishes the resulting events onto the Internal Bus.
//
// Unlike the teacher's network.Server, which spawns a goroutine per
// packet, the Ingestor runs a single cooperative loop: one socket read,
// one Parse call, one publish pass, repeat. There is nothing here that
// benefits from concurrency — Parse is pure and fast, and a single loop
// keeps record ordering trivially correct without locking.
package ingestor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/lmig/csserver/pkg/bus"
	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/frame"
	"github.com/lmig/csserver/pkg/logger"
	"github.com/lmig/csserver/pkg/metrics"
	"github.com/lmig/csserver/pkg/wire"
)

// defaultBufferSize is the rolling buffer capacity recommended by the
// Frame Parser design: large enough to hold several voice records'
// worth of backlog without ever being the limiting factor in practice.
const defaultBufferSize = 8192

// maxDatagramSize is the largest UDP datagram ReadFromUDP will accept in
// one call.
const maxDatagramSize = 65535

// Config configures the Ingestor's bind address and buffer sizing.
type Config struct {
	IP         string
	Port       int
	BufferSize int // 0 selects defaultBufferSize
}

// Ingestor owns the ingress UDP socket and the Frame Parser's rolling
// buffer.
type Ingestor struct {
	cfg     Config
	bus     *bus.Bus
	metrics *metrics.Collector
	log     *logger.Logger

	conn *net.UDPConn

	buf    []byte
	length int

	started chan struct{}
}

// New creates an Ingestor. Call Run to bind the socket and start
// processing.
func New(cfg Config, b *bus.Bus, m *metrics.Collector, log *logger.Logger) *Ingestor {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return &Ingestor{
		cfg:     cfg,
		bus:     b,
		metrics: m,
		log:     log.WithComponent("ingestor"),
		buf:     make([]byte, cfg.BufferSize),
		started: make(chan struct{}),
	}
}

// WaitStarted blocks until the ingress socket is bound or ctx is canceled.
func (i *Ingestor) WaitStarted(ctx context.Context) error {
	select {
	case <-i.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound local address. Valid after WaitStarted returns.
func (i *Ingestor) Addr() *net.UDPAddr {
	if i.conn == nil {
		return nil
	}
	addr, _ := i.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Run binds the ingress socket and processes datagrams until ctx is
// canceled or a Fatal error occurs (a bind failure, or a single record
// too large to ever fit in the rolling buffer).
func (i *Ingestor) Run(ctx context.Context) error {
	localAddr := &net.UDPAddr{IP: net.ParseIP(i.cfg.IP), Port: i.cfg.Port}
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return fmt.Errorf("ingestor: failed to bind ingress socket: %w", err)
	}
	i.conn = conn
	defer func() { _ = conn.Close() }()

	select {
	case <-i.started:
	default:
		close(i.started)
	}

	i.log.Info("ingress socket bound", logger.String("addr", conn.LocalAddr().String()))

	datagram := make([]byte, maxDatagramSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			i.log.Warn("failed to set read deadline", logger.Error(err))
			continue
		}

		n, _, err := conn.ReadFromUDP(datagram)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			i.log.Error("ingress socket read error", logger.Error(err))
			continue
		}
		if n == 0 {
			continue
		}

		if i.metrics != nil {
			i.metrics.BytesIngested(n)
		}

		if err := i.ingest(datagram[:n]); err != nil {
			return err
		}
	}
}

// ingest appends a received datagram to the rolling buffer, drains every
// fully-formed record the Frame Parser can extract, publishes the
// resulting events, and compacts the unconsumed tail to offset 0.
func (i *Ingestor) ingest(datagram []byte) error {
	if i.length+len(datagram) > len(i.buf) {
		return fmt.Errorf("ingestor: buffer overflow, a record exceeds the %d-byte ingress buffer", len(i.buf))
	}
	copy(i.buf[i.length:], datagram)
	i.length += len(datagram)

	events, consumed := frame.Parse(i.buf[:i.length], time.Now)
	for _, ev := range events {
		i.publish(ev)
	}

	remaining := i.length - consumed
	copy(i.buf[0:remaining], i.buf[consumed:i.length])
	i.length = remaining
	return nil
}

func (i *Ingestor) publish(ev event.Event) {
	if i.metrics != nil {
		if ev.Kind == event.KindVoiceFrame {
			i.metrics.VoiceFrame()
		} else {
			i.metrics.SignalingRecord(string(ev.Kind))
		}
	}

	if vf, ok := ev.Payload.(event.VoiceFrame); ok {
		i.bus.Publish(bus.Message{
			Topic:      bus.VoiceTopic(vf.CallID),
			ReceivedAt: ev.ReceivedAt,
			Event:      ev,
			Voice:      vf.Payload1,
		})
		return
	}

	msgID, ok := signalingMessageID(ev.Kind)
	if !ok {
		i.log.Warn("no signaling topic for event kind", logger.String("kind", string(ev.Kind)))
		return
	}
	i.bus.Publish(bus.Message{
		Topic:      bus.SignalingTopic(msgID),
		ReceivedAt: ev.ReceivedAt,
		Event:      ev,
	})
}

// signalingMessageID maps an event Kind back to the wire message id that
// produced it, so the Ingestor can derive its bus topic without the
// Frame Parser needing to carry the raw id forward itself.
func signalingMessageID(kind event.Kind) (uint8, bool) {
	switch kind {
	case event.KindKeepAlive:
		return wire.MsgKeepAlive, true
	case event.KindDuplexCallChange:
		return wire.MsgDuplexCallChange, true
	case event.KindDuplexCallRelease:
		return wire.MsgDuplexCallRelease, true
	case event.KindSimplexCallStartChange:
		return wire.MsgSimplexCallStartChange, true
	case event.KindSimplexCallPttChange:
		return wire.MsgSimplexCallPttChange, true
	case event.KindSimplexCallRelease:
		return wire.MsgSimplexCallRelease, true
	case event.KindGroupCallStartChange:
		return wire.MsgGroupCallStartChange, true
	case event.KindGroupCallPttActive:
		return wire.MsgGroupCallPttActive, true
	case event.KindGroupCallPttIdle:
		return wire.MsgGroupCallPttIdle, true
	case event.KindGroupCallRelease:
		return wire.MsgGroupCallRelease, true
	case event.KindStatusSDS:
		return wire.MsgStatusSDS, true
	case event.KindTextSDS:
		return wire.MsgTextSDS, true
	default:
		return 0, false
	}
}
