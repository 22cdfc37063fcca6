package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBeforeRegisterIsNoop(t *testing.T) {
	if frames != nil {
		t.Skip("collectors already registered by another test")
	}
	RecordFrame("binance", "spot", "normal")
	RecordSnapshot("binance", "BTCUSDT", errors.New("boom"))
	SetUsedWeight("binance", 10)
}

func TestRegisterCounts(t *testing.T) {
	reg := Register()
	if reg != Register() {
		t.Fatal("Register should return the same registry")
	}

	RecordFrame("okx", "spot", "misc")
	RecordFrame("okx", "spot", "misc")
	if got := testutil.ToFloat64(frames.WithLabelValues("okx", "spot", "misc")); got != 2 {
		t.Fatalf("frames = %v, want 2", got)
	}

	RecordSnapshot("bybit", "BTCUSDT", nil)
	RecordSnapshot("bybit", "BTCUSDT", errors.New("timeout"))
	if got := testutil.ToFloat64(snapshotSuccess.WithLabelValues("bybit", "BTCUSDT")); got != 1 {
		t.Fatalf("snapshot success = %v", got)
	}
	if got := testutil.ToFloat64(snapshotErrors.WithLabelValues("bybit", "BTCUSDT")); got != 1 {
		t.Fatalf("snapshot errors = %v", got)
	}

	SetChannelLen("raw", 7)
	if got := testutil.ToFloat64(channelLen.WithLabelValues("raw")); got != 7 {
		t.Fatalf("channel len = %v", got)
	}
}
