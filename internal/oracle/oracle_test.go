package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStatic(t *testing.T) {
	p, err := Static(5000).Price(context.Background(), "PERP-BTC-USDC")
	if err != nil || p != 5000 {
		t.Errorf("got (%d, %v)", p, err)
	}
}

func TestToFixed(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr error
	}{
		{"50.00", 5000, nil},
		{"50", 5000, nil},
		{"0.01", 1, nil},
		{"0.019", 1, nil}, // sub-cent floors
		{"0", 0, nil},
		{"-1", 0, ErrInvalidPrice},
	}
	for _, tt := range tests {
		d, _ := decimal.NewFromString(tt.in)
		got, err := ToFixed(d)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ToFixed(%s) err = %v, want %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ToFixed(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFromFixed(t *testing.T) {
	if got := FromFixed(5000); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("FromFixed(5000) = %s", got)
	}
}

func TestFeed_PushAndRead(t *testing.T) {
	f := NewFeed(time.Minute)
	if err := f.Push("PERP-BTC-USDC", decimal.NewFromFloat(50.25)); err != nil {
		t.Fatalf("push: %v", err)
	}
	p, err := f.Price(context.Background(), "PERP-BTC-USDC")
	if err != nil || p != 5025 {
		t.Errorf("got (%d, %v)", p, err)
	}
}

func TestFeed_Unavailable(t *testing.T) {
	f := NewFeed(time.Minute)
	_, err := f.Price(context.Background(), "PERP-ETH-USDC")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestFeed_Stale(t *testing.T) {
	f := NewFeed(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	f.nowFunc = func() time.Time { return now }

	if err := f.Push("PERP-BTC-USDC", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("push: %v", err)
	}

	now = now.Add(61 * time.Second)
	_, err := f.Price(context.Background(), "PERP-BTC-USDC")
	if !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}

	// A fresh push recovers.
	if err := f.Push("PERP-BTC-USDC", decimal.NewFromInt(51)); err != nil {
		t.Fatalf("push: %v", err)
	}
	p, err := f.Price(context.Background(), "PERP-BTC-USDC")
	if err != nil || p != 5100 {
		t.Errorf("got (%d, %v)", p, err)
	}
}
