package heatmap

import (
	"math"
	"testing"
)

func TestMaxWeightStateString(t *testing.T) {
	tests := []struct {
		s    MaxWeightState
		want string
	}{
		{MaxWeightEmpty, "Empty"},
		{MaxWeightInProgress, "InProgress"},
		{MaxWeightCompleted, "Completed"},
		{MaxWeightState(9), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestMaxWeightLifecycle(t *testing.T) {
	tr := newTestRenderer(t, nil)
	tr.start()
	if tr.ready().Geometry != nil {
		t.Fatal("Geometry before IncomingData")
	}

	// Without geometry a frame does nothing.
	tr.dispatch(RedrawRequested{})
	if got := tr.ready().MaxWeight; got != MaxWeightEmpty {
		t.Fatalf("MaxWeight = %v, want Empty", got)
	}

	tr.dispatch(IncomingData{Dataset: overlapDataset(t)})
	tr.dispatch(RedrawRequested{})
	if got := tr.ready().MaxWeight; got != MaxWeightInProgress {
		t.Fatalf("MaxWeight = %v, want InProgress", got)
	}

	// Further frames do not issue another readback.
	tr.dispatch(RedrawRequested{})
	msg := tr.next()
	tr.dispatch(msg)
	if got := tr.ready().MaxWeight; got != MaxWeightCompleted {
		t.Fatalf("MaxWeight = %v, want Completed", got)
	}
	select {
	case extra := <-tr.bus.Messages():
		t.Errorf("unexpected message %T", extra)
	default:
	}

	// A completion that arrives again is stale.
	tr.dispatch(msg)
	if got := tr.ready().MaxWeight; got != MaxWeightCompleted {
		t.Errorf("MaxWeight = %v after duplicate completion", got)
	}

	tr.dispatch(IncomingData{Dataset: overlapDataset(t)})
	if got := tr.ready().MaxWeight; got != MaxWeightEmpty {
		t.Errorf("MaxWeight after new dataset = %v, want Empty", got)
	}
}

func TestSelectLOD(t *testing.T) {
	tests := []struct {
		zoom float64
		want int
	}{
		{0.001, 2},
		{5, 2},
		{14.99, 2},
		{15, 1},
		{29.9, 1},
		{30, 0},
		{1e6, 0},
	}
	for _, tt := range tests {
		if got := SelectLOD(DefaultLODThresholds, tt.zoom); got != tt.want {
			t.Errorf("SelectLOD(%v) = %d, want %d", tt.zoom, got, tt.want)
		}
	}

	// Monotonic: higher zoom never selects a coarser level.
	prev := math.MaxInt
	for z := 0.5; z < 100; z += 0.5 {
		lod := SelectLOD(DefaultLODThresholds, z)
		if lod > prev {
			t.Fatalf("SelectLOD(%v) = %d, coarser than %d", z, lod, prev)
		}
		prev = lod
	}
}

func TestSelectLODBeyondTable(t *testing.T) {
	table := []LODThreshold{{MaxZoom: 10, LOD: 1}, {MaxZoom: 20, LOD: 0}}
	if got := SelectLOD(table, 50); got != 0 {
		t.Errorf("SelectLOD() = %d, want last level 0", got)
	}
	if got := SelectLOD(nil, 50); got != 0 {
		t.Errorf("SelectLOD(nil) = %d, want 0", got)
	}
}

func TestInputDrain(t *testing.T) {
	var in Input

	in.CursorMoved(10, 10)
	in.CursorMoved(20, 15)
	if _, _, drag := in.drain(); drag.Len() != 0 {
		t.Errorf("drag without button = %v, want zero", drag)
	}

	in.PrimaryButton(true)
	in.CursorMoved(25, 10)
	in.CursorMoved(30, 12)
	in.PrimaryButton(false)
	in.CursorMoved(100, 100)
	in.ScrollLines(2)
	in.ScrollPixels(3)

	scroll, cursor, drag := in.drain()
	if scroll != 23 {
		t.Errorf("scroll = %v, want 23", scroll)
	}
	if drag.X() != 10 || drag.Y() != -3 {
		t.Errorf("drag = %v, want (10, -3)", drag)
	}
	if cursor.X() != 100 || cursor.Y() != 100 {
		t.Errorf("cursor = %v, want (100, 100)", cursor)
	}

	scroll, cursor, drag = in.drain()
	if scroll != 0 || drag.Len() != 0 {
		t.Errorf("second drain = %v, %v, want zero", scroll, drag)
	}
	if cursor.X() != 100 {
		t.Error("drain reset the cursor")
	}
}

func TestBusClosed(t *testing.T) {
	b := NewBus(1)
	if !b.Post(RedrawRequested{}) {
		t.Fatal("Post() = false on open bus")
	}
	b.Close()
	b.Close()
	if b.Post(RedrawRequested{}) {
		t.Error("Post() = true after Close")
	}
}
