package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	if collector.Registry() == nil {
		t.Fatal("Expected non-nil registry")
	}
}

func TestCollector_CallLifecycle(t *testing.T) {
	collector := NewCollector()

	collector.CallStarted("duplex")
	if got := testutil.ToFloat64(collector.callsActive.WithLabelValues("duplex")); got != 1 {
		t.Errorf("expected 1 active duplex call, got %v", got)
	}
	if got := testutil.ToFloat64(collector.callsTotal.WithLabelValues("duplex")); got != 1 {
		t.Errorf("expected 1 total duplex call, got %v", got)
	}

	collector.CallEnded("duplex")
	if got := testutil.ToFloat64(collector.callsActive.WithLabelValues("duplex")); got != 0 {
		t.Errorf("expected 0 active duplex calls after end, got %v", got)
	}
	if got := testutil.ToFloat64(collector.callsTotal.WithLabelValues("duplex")); got != 1 {
		t.Errorf("expected callsTotal to remain cumulative at 1, got %v", got)
	}
}

func TestCollector_SignalingAndVoice(t *testing.T) {
	collector := NewCollector()

	collector.SignalingRecord("KeepAlive")
	collector.SignalingRecord("KeepAlive")
	collector.VoiceFrame()
	collector.BytesIngested(500)

	if got := testutil.ToFloat64(collector.signalingRecordsTotal.WithLabelValues("KeepAlive")); got != 2 {
		t.Errorf("expected 2 KeepAlive records, got %v", got)
	}
	if got := testutil.ToFloat64(collector.voiceFramesTotal); got != 1 {
		t.Errorf("expected 1 voice frame, got %v", got)
	}
	if got := testutil.ToFloat64(collector.bytesIngestedTotal); got != 500 {
		t.Errorf("expected 500 bytes ingested, got %v", got)
	}
}

func TestCollector_ErrorClasses(t *testing.T) {
	collector := NewCollector()

	collector.BusDrop()
	collector.ProtocolError()
	collector.StorageError()
	collector.ChildProcessError()
	collector.ResourceExhausted("feeder")

	if got := testutil.ToFloat64(collector.busDropsTotal); got != 1 {
		t.Errorf("expected 1 bus drop, got %v", got)
	}
	if got := testutil.ToFloat64(collector.protocolErrorsTotal); got != 1 {
		t.Errorf("expected 1 protocol error, got %v", got)
	}
	if got := testutil.ToFloat64(collector.storageErrorsTotal); got != 1 {
		t.Errorf("expected 1 storage error, got %v", got)
	}
	if got := testutil.ToFloat64(collector.childProcessErrorsTotal); got != 1 {
		t.Errorf("expected 1 child process error, got %v", got)
	}
	if got := testutil.ToFloat64(collector.resourceExhaustedTotal.WithLabelValues("feeder")); got != 1 {
		t.Errorf("expected 1 feeder exhaustion, got %v", got)
	}
}

func TestCollector_RegistryGather(t *testing.T) {
	collector := NewCollector()
	collector.VoiceFrame()

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var found bool
	for _, f := range families {
		if strings.Contains(f.GetName(), "callstream_voice_frames_total") {
			found = true
		}
	}
	if !found {
		t.Error("expected callstream_voice_frames_total in gathered families")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	collector := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.CallStarted("group")
			collector.SignalingRecord("GroupCallStartChange")
			collector.BytesIngested(500)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(collector.callsTotal.WithLabelValues("group")); got != 10 {
		t.Errorf("expected 10 group calls, got %v", got)
	}
}
