// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package hub

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/record"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	// Initialize logging for tests with discard output
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// dataRecord builds a data record with a distinguishable sequence number.
func dataRecord(seq uint64) *record.Record {
	return record.NewData(seq, json.RawMessage(`{"n":1}`))
}

// drainSeqs dequeues every queued record and returns the data sequence
// numbers in order. Control records appear as zero.
func drainSeqs(w *Window) []uint64 {
	var seqs []uint64
	for {
		r, ok := w.TryDequeue()
		if !ok {
			return seqs
		}
		seqs = append(seqs, r.Seq)
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    OverflowPolicy
		wantErr bool
	}{
		{"buffer", OverflowBuffer, false},
		{"drop-oldest", OverflowDropOldest, false},
		{"drop-latest", OverflowDropLatest, false},
		{"error", OverflowError, false},
		{"", "", true},
		{"panic", "", true},
		{"Buffer", "", true},
		{"drop_oldest", "", true},
	}

	for _, tt := range tests {
		t.Run("policy_"+tt.input, func(t *testing.T) {
			got, err := ParseOverflowPolicy(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseOverflowPolicy(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOverflowPolicy(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseOverflowPolicy(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWindow_FIFOAcrossWrap(t *testing.T) {
	w := NewWindow(3, OverflowBuffer)
	ctx := context.Background()

	for seq := uint64(1); seq <= 3; seq++ {
		if err := w.Enqueue(ctx, dataRecord(seq)); err != nil {
			t.Fatalf("Enqueue(%d) failed: %v", seq, err)
		}
	}
	if r, ok := w.TryDequeue(); !ok || r.Seq != 1 {
		t.Fatalf("first dequeue = %+v, %v; want seq 1", r, ok)
	}
	if err := w.Enqueue(ctx, dataRecord(4)); err != nil {
		t.Fatalf("Enqueue(4) failed: %v", err)
	}

	got := drainSeqs(w)
	want := []uint64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got seq %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWindow_BufferPolicyBlocksUntilDrained(t *testing.T) {
	w := NewWindow(1, OverflowBuffer)
	ctx := context.Background()

	if err := w.Enqueue(ctx, dataRecord(1)); err != nil {
		t.Fatalf("initial enqueue failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Enqueue(ctx, dataRecord(2))
	}()

	select {
	case err := <-done:
		t.Fatalf("enqueue on full window returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if r, ok := w.TryDequeue(); !ok || r.Seq != 1 {
		t.Fatalf("dequeue = %+v, %v; want seq 1", r, ok)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked enqueue failed after drain: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue still blocked after a slot freed")
	}

	if r, ok := w.TryDequeue(); !ok || r.Seq != 2 {
		t.Errorf("dequeue = %+v, %v; want seq 2", r, ok)
	}
}

func TestWindow_BufferPolicyContextCancel(t *testing.T) {
	w := NewWindow(1, OverflowBuffer)
	if err := w.Enqueue(context.Background(), dataRecord(1)); err != nil {
		t.Fatalf("initial enqueue failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Enqueue(ctx, dataRecord(2))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("blocked enqueue returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue did not observe cancellation")
	}
}

func TestWindow_DropOldestEvictsDataNotControl(t *testing.T) {
	w := NewWindow(2, OverflowDropOldest)
	ctx := context.Background()

	meta := record.NewMetadata("stream-1", 0, 2)
	if err := w.Enqueue(ctx, meta); err != nil {
		t.Fatalf("enqueue metadata failed: %v", err)
	}
	if err := w.Enqueue(ctx, dataRecord(1)); err != nil {
		t.Fatalf("enqueue data 1 failed: %v", err)
	}
	// Full. The data record must be the victim, not the older metadata.
	if err := w.Enqueue(ctx, dataRecord(2)); err != nil {
		t.Fatalf("enqueue data 2 failed: %v", err)
	}

	first, ok := w.TryDequeue()
	if !ok || first.Kind != record.KindMetadata {
		t.Fatalf("first dequeue kind = %v, want metadata", first.Kind)
	}
	second, ok := w.TryDequeue()
	if !ok || second.Seq != 2 {
		t.Fatalf("second dequeue = %+v, want data seq 2", second)
	}
	if n := w.TakePendingDrops(); n != 1 {
		t.Errorf("TakePendingDrops() = %d, want 1", n)
	}
	if w.TotalDropped() != 1 {
		t.Errorf("TotalDropped() = %d, want 1", w.TotalDropped())
	}
}

func TestWindow_DropOldestAllControlDropsIncoming(t *testing.T) {
	w := NewWindow(1, OverflowDropOldest)
	ctx := context.Background()

	meta := record.NewMetadata("stream-1", 0, 0)
	if err := w.Enqueue(ctx, meta); err != nil {
		t.Fatalf("enqueue metadata failed: %v", err)
	}
	if err := w.Enqueue(ctx, dataRecord(1)); err != nil {
		t.Fatalf("enqueue data failed: %v", err)
	}

	r, ok := w.TryDequeue()
	if !ok || r.Kind != record.KindMetadata {
		t.Fatalf("dequeue kind = %v, want metadata preserved", r.Kind)
	}
	if _, ok := w.TryDequeue(); ok {
		t.Error("window should be empty after metadata")
	}
	if n := w.TakePendingDrops(); n != 1 {
		t.Errorf("TakePendingDrops() = %d, want 1 for discarded incoming data", n)
	}
}

func TestWindow_DropLatestKeepsQueue(t *testing.T) {
	w := NewWindow(2, OverflowDropLatest)
	ctx := context.Background()

	for seq := uint64(1); seq <= 2; seq++ {
		if err := w.Enqueue(ctx, dataRecord(seq)); err != nil {
			t.Fatalf("Enqueue(%d) failed: %v", seq, err)
		}
	}
	if err := w.Enqueue(ctx, dataRecord(3)); err != nil {
		t.Fatalf("enqueue on full window failed: %v", err)
	}

	got := drainSeqs(w)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("drained %v, want [1 2]: newest record should have been dropped", got)
	}
	if w.TotalDropped() != 1 {
		t.Errorf("TotalDropped() = %d, want 1", w.TotalDropped())
	}
}

func TestWindow_DropCountsOnlyDataRecords(t *testing.T) {
	w := NewWindow(1, OverflowDropLatest)
	ctx := context.Background()

	if err := w.Enqueue(ctx, dataRecord(1)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	// A discarded heartbeat is not a delivery gap.
	if err := w.Enqueue(ctx, record.NewHeartbeat()); err != nil {
		t.Fatalf("enqueue heartbeat failed: %v", err)
	}
	if w.TotalDropped() != 0 {
		t.Errorf("TotalDropped() = %d after heartbeat drop, want 0", w.TotalDropped())
	}

	if err := w.Enqueue(ctx, dataRecord(2)); err != nil {
		t.Fatalf("enqueue data failed: %v", err)
	}
	if w.TotalDropped() != 1 {
		t.Errorf("TotalDropped() = %d after data drop, want 1", w.TotalDropped())
	}
}

func TestWindow_ErrorPolicyOverflow(t *testing.T) {
	w := NewWindow(1, OverflowError)
	ctx := context.Background()

	if err := w.Enqueue(ctx, dataRecord(1)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := w.Enqueue(ctx, dataRecord(2)); err != ErrWindowOverflow {
		t.Errorf("enqueue on full window = %v, want ErrWindowOverflow", err)
	}

	// The queue is intact after the overflow error.
	if r, ok := w.TryDequeue(); !ok || r.Seq != 1 {
		t.Errorf("dequeue = %+v, %v; want seq 1", r, ok)
	}
}

func TestWindow_TakePendingDropsWaitsForSpace(t *testing.T) {
	w := NewWindow(1, OverflowDropLatest)
	ctx := context.Background()

	if err := w.Enqueue(ctx, dataRecord(1)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := w.Enqueue(ctx, dataRecord(2)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// While the window is full the pending count is withheld so the
	// advisory built from it can be queued without displacing records.
	if n := w.TakePendingDrops(); n != 0 {
		t.Errorf("TakePendingDrops() on full window = %d, want 0", n)
	}
	if _, ok := w.TryDequeue(); !ok {
		t.Fatal("dequeue failed")
	}
	if n := w.TakePendingDrops(); n != 1 {
		t.Errorf("TakePendingDrops() after drain = %d, want 1", n)
	}
	if n := w.TakePendingDrops(); n != 0 {
		t.Errorf("second TakePendingDrops() = %d, want 0", n)
	}
}

func TestWindow_Close(t *testing.T) {
	t.Run("enqueue after close fails", func(t *testing.T) {
		w := NewWindow(4, OverflowBuffer)
		if err := w.Enqueue(context.Background(), dataRecord(1)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		w.Close()
		if err := w.Enqueue(context.Background(), dataRecord(2)); err != ErrWindowClosed {
			t.Errorf("enqueue after close = %v, want ErrWindowClosed", err)
		}
	})

	t.Run("dequeue drains after close", func(t *testing.T) {
		w := NewWindow(4, OverflowBuffer)
		for seq := uint64(1); seq <= 3; seq++ {
			if err := w.Enqueue(context.Background(), dataRecord(seq)); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}
		w.Close()
		if got := drainSeqs(w); len(got) != 3 {
			t.Errorf("drained %d records after close, want 3", len(got))
		}
	})

	t.Run("close wakes blocked enqueuer", func(t *testing.T) {
		w := NewWindow(1, OverflowBuffer)
		if err := w.Enqueue(context.Background(), dataRecord(1)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		done := make(chan error, 1)
		go func() {
			done <- w.Enqueue(context.Background(), dataRecord(2))
		}()
		time.Sleep(20 * time.Millisecond)
		w.Close()

		select {
		case err := <-done:
			if err != ErrWindowClosed {
				t.Errorf("blocked enqueue after close = %v, want ErrWindowClosed", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("close did not wake the blocked enqueuer")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		w := NewWindow(1, OverflowBuffer)
		w.Close()
		w.Close()
	})
}

func TestWindow_NotEmptySignal(t *testing.T) {
	w := NewWindow(4, OverflowBuffer)
	ready := w.NotEmpty()

	select {
	case <-ready:
		t.Fatal("NotEmpty signaled on an empty window")
	default:
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = w.Enqueue(context.Background(), dataRecord(1))
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("NotEmpty never signaled after enqueue")
	}
	if r, ok := w.TryDequeue(); !ok || r.Seq != 1 {
		t.Errorf("dequeue = %+v, %v; want seq 1", r, ok)
	}
}

func TestWindow_MinimumSize(t *testing.T) {
	w := NewWindow(0, OverflowBuffer)
	if err := w.Enqueue(context.Background(), dataRecord(1)); err != nil {
		t.Errorf("window with normalized size rejected a record: %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1", w.Len())
	}
}
