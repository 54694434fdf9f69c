package expiration_test

import (
	"testing"
	"time"

	"github.com/krisalay/request-cache/expiration"
	"github.com/krisalay/request-cache/types"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func entry(ttl time.Duration) *types.CacheEntry {
	return &types.CacheEntry{Key: "k", Value: 1, StoredAt: t0, TTL: ttl}
}

func TestPerEntryIsStale(t *testing.T) {
	p := &expiration.PerEntry{}

	if p.IsStale(entry(0), 5*time.Minute, t0.Add(time.Second)) {
		t.Fatal("fresh entry reported stale")
	}
	if !p.IsStale(entry(0), 5*time.Minute, t0.Add(5*time.Minute)) {
		t.Fatal("age == ttl must be stale")
	}

	// the recorded TTL wins when it is shorter than the reader's
	if !p.IsStale(entry(time.Second), time.Minute, t0.Add(2*time.Second)) {
		t.Fatal("entry older than its own TTL reported fresh")
	}
}

func TestPerEntryIsExpired(t *testing.T) {
	p := &expiration.PerEntry{}

	if !p.IsExpired(entry(time.Millisecond), t0.Add(2*time.Millisecond)) {
		t.Fatal("recorded TTL not honoured by sweep")
	}
	if p.IsExpired(entry(0), t0.Add(4*time.Minute)) {
		t.Fatal("entry without TTL evicted before default")
	}
	if !p.IsExpired(entry(0), t0.Add(expiration.DefaultSweepTTL+time.Millisecond)) {
		t.Fatal("entry without TTL kept past default")
	}

	custom := &expiration.PerEntry{Default: time.Minute}
	if !custom.IsExpired(entry(0), t0.Add(61*time.Second)) {
		t.Fatal("custom default ignored")
	}
}

func TestFixedIgnoresRecordedTTL(t *testing.T) {
	f := &expiration.Fixed{TTL: 5 * time.Minute}

	ent := entry(0)
	f.OnWrite(ent, time.Millisecond)
	if ent.TTL != 0 {
		t.Fatalf("Fixed should not record TTL, got %v", ent.TTL)
	}
	if f.IsExpired(ent, t0.Add(time.Minute)) {
		t.Fatal("Fixed evicted before its TTL")
	}
	if !f.IsExpired(ent, t0.Add(5*time.Minute+time.Millisecond)) {
		t.Fatal("Fixed kept entry past its TTL")
	}
	if f.IsStale(ent, time.Hour, t0.Add(time.Minute)) {
		t.Fatal("Fixed read path must only use the reader's TTL")
	}
}
