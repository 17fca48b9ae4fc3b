package engine

import (
	"testing"
	"time"
)

func TestParseProfile(t *testing.T) {
	l, err := ParseProfile("5000", false)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if bw := l.BitsPerSecond(time.Hour); bw != 5_000_000 {
		t.Errorf("constant bandwidth = %d", bw)
	}

	l, err = ParseProfile("4000:10s, 500:5s", true)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	tests := []struct {
		at   time.Duration
		want int64
	}{
		{0, 4_000_000},
		{9 * time.Second, 4_000_000},
		{10 * time.Second, 500_000},
		{16 * time.Second, 4_000_000}, // looped
	}
	for _, tt := range tests {
		if got := l.BitsPerSecond(tt.at); got != tt.want {
			t.Errorf("BitsPerSecond(%v) = %d, want %d", tt.at, got, tt.want)
		}
	}

	for _, bad := range []string{"", "abc", "0", "100:", "100:xs", "x:10s", "100:-1s"} {
		if _, err := ParseProfile(bad, false); err == nil {
			t.Errorf("ParseProfile(%q) should fail", bad)
		}
	}
}

func TestProfileLink_HoldsLastStep(t *testing.T) {
	l := &ProfileLink{Steps: []Step{{Duration: time.Second, Bandwidth: 1000}, {Duration: time.Second, Bandwidth: 2000}}}
	if got := l.BitsPerSecond(time.Minute); got != 2000 {
		t.Errorf("BitsPerSecond past end = %d, want 2000", got)
	}
}

func TestTransferTime(t *testing.T) {
	l := ConstantLink{Bandwidth: 8_000_000, RTT: 50 * time.Millisecond}
	// 1 MB at 8 Mbit/s is one second, plus latency.
	got := TransferTime(l, 0, 1_000_000)
	want := 1050 * time.Millisecond
	if diff := got - want; diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("TransferTime = %v, want ~%v", got, want)
	}

	// Half the transfer on a fast step, the rest on a slow one.
	p := &ProfileLink{Steps: []Step{{Duration: time.Second, Bandwidth: 8_000_000}, {Duration: time.Hour, Bandwidth: 4_000_000}}}
	got = TransferTime(p, 0, 2_000_000)
	want = 3 * time.Second
	if diff := got - want; diff < -10*time.Millisecond || diff > 10*time.Millisecond {
		t.Errorf("TransferTime(profile) = %v, want ~%v", got, want)
	}
}
