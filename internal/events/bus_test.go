package events

import "testing"

func TestBus_EmitInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var got []int
	b.On(Granted, func(Event) { got = append(got, 1) })
	b.On(Granted, func(Event) { got = append(got, 2) })
	b.On(Error, func(Event) { got = append(got, 99) })

	b.Emit(Event{Name: Granted})

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got=%v want [1 2]", got)
	}
}

func TestBus_OffDetachesByReference(t *testing.T) {
	b := NewBus()
	calls := 0
	h := func(Event) { calls++ }
	l1 := b.On(Error, h)
	b.On(Error, h)

	b.Off(l1)
	b.Emit(Event{Name: Error, Code: CodeNoHTTPS})

	if calls != 1 {
		t.Fatalf("calls=%d want=1", calls)
	}
	if n := b.Count(Error); n != 1 {
		t.Fatalf("count=%d want=1", n)
	}

	// Second Off of the same listener is a no-op.
	b.Off(l1)
	b.Off(nil)
	if n := b.Count(Error); n != 1 {
		t.Fatalf("count=%d want=1", n)
	}
}

func TestBus_OffDuringEmit(t *testing.T) {
	b := NewBus()
	calls := 0
	var l *Listener
	l = b.On(Granted, func(Event) {
		calls++
		b.Off(l)
	})
	b.On(Granted, func(Event) { calls++ })

	b.Emit(Event{Name: Granted})
	b.Emit(Event{Name: Granted})

	if calls != 3 {
		t.Fatalf("calls=%d want=3", calls)
	}
}

func TestBus_ErrorPayload(t *testing.T) {
	b := NewBus()
	var got Event
	b.On(Error, func(e Event) { got = e })
	b.Emit(Event{Name: Error, Code: CodePermissionDenied, Message: "denied"})
	if got.Code != CodePermissionDenied || got.Message != "denied" {
		t.Fatalf("got=%+v", got)
	}
}
