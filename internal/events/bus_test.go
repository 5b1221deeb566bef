package events

import "testing"

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()

	var got []Type
	bus.Subscribe(func(e Event) {
		got = append(got, e.Type)
	})

	bus.Publish(Event{Type: Login})
	bus.Publish(Event{Type: UsageUpdated})
	bus.Publish(Event{Type: Logout})

	want := []Type{Login, UsageUpdated, Logout}
	if len(got) != len(want) {
		t.Fatalf("delivered %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	first, second := 0, 0
	bus.Subscribe(func(Event) { first++ })
	bus.Subscribe(func(Event) { second++ })

	bus.Publish(Event{Type: GuestUsageUpdated})
	bus.Publish(Event{Type: GuestUsageUpdated})

	if first != 2 || second != 2 {
		t.Errorf("subscribers saw %d and %d events, want 2 and 2", first, second)
	}
}

func TestBusPayloadPassthrough(t *testing.T) {
	bus := NewBus()

	var payload any
	bus.Subscribe(func(e Event) { payload = e.Payload })

	bus.Publish(Event{Type: UsageUpdated, Payload: 7})
	if payload != 7 {
		t.Errorf("payload = %v, want 7", payload)
	}
}
