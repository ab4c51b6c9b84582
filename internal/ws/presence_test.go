package ws

import "testing"

func TestPresence_SnapshotPartitionsEveryone(t *testing.T) {
	gw := newFakeGateway()
	gw.users[1] = "amr"
	gw.users[2] = "sara"
	gw.users[3] = "omar"
	p := NewPresence(gw)

	if err := p.Mark(1, 1, false); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if err := p.Mark(1, 2, false); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if err := p.Mark(1, 3, true); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}

	active, exited, err := p.Snapshot(1)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(active)+len(exited) != 3 {
		t.Fatalf("snapshot covers %d users, want 3", len(active)+len(exited))
	}
	if len(active) != 2 || len(exited) != 1 {
		t.Errorf("active=%v exited=%v, want 2 active 1 exited", active, exited)
	}
	if exited[0] != "omar" {
		t.Errorf("exited = %v, want [omar]", exited)
	}
}

func TestPresence_MarkIdempotent(t *testing.T) {
	gw := newFakeGateway()
	gw.users[1] = "amr"
	p := NewPresence(gw)

	for i := 0; i < 2; i++ {
		if err := p.Mark(1, 1, false); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
	}
	active, exited, err := p.Snapshot(1)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(active) != 1 || len(exited) != 0 {
		t.Errorf("after double mark: active=%v exited=%v, want one active row", active, exited)
	}
}

func TestPresence_FlipBackAndForth(t *testing.T) {
	gw := newFakeGateway()
	gw.users[1] = "amr"
	p := NewPresence(gw)

	_ = p.Mark(1, 1, false)
	_ = p.Mark(1, 1, true)
	_ = p.Mark(1, 1, false)

	active, exited, err := p.Snapshot(1)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(active) != 1 || active[0] != "amr" || len(exited) != 0 {
		t.Errorf("active=%v exited=%v, want amr active", active, exited)
	}
}

func TestPresence_RoomsIndependent(t *testing.T) {
	gw := newFakeGateway()
	gw.users[1] = "amr"
	p := NewPresence(gw)

	_ = p.Mark(1, 1, false)
	_ = p.Mark(2, 1, true)

	active1, _, _ := p.Snapshot(1)
	_, exited2, _ := p.Snapshot(2)
	if len(active1) != 1 || len(exited2) != 1 {
		t.Errorf("room 1 active=%v, room 2 exited=%v", active1, exited2)
	}
}
