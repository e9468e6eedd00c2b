package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := New()
	defer bus.Close()

	received := make(chan Event, 10)
	bus.Subscribe("EXTRACT", received)

	bus.Publish(Event{
		Stage:     "EXTRACT",
		Date:      "20250101",
		Timestamp: time.Now(),
		Success:   true,
		Processed: 42,
	})

	select {
	case evt := <-received:
		if evt.Stage != "EXTRACT" {
			t.Errorf("expected EXTRACT, got %s", evt.Stage)
		}
		if evt.Date != "20250101" || evt.Processed != 42 {
			t.Errorf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch1 := make(chan Event, 10)
	ch2 := make(chan Event, 10)
	bus.Subscribe("LOAD", ch1)
	bus.Subscribe("LOAD", ch2)

	bus.Publish(Event{Stage: "LOAD", Date: "20250101"})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_StageFiltering(t *testing.T) {
	bus := New()
	defer bus.Close()

	extractCh := make(chan Event, 10)
	loadCh := make(chan Event, 10)
	bus.Subscribe("EXTRACT", extractCh)
	bus.Subscribe("LOAD", loadCh)

	bus.Publish(Event{Stage: "EXTRACT", Date: "20250101"})

	select {
	case <-extractCh:
	case <-time.After(time.Second):
		t.Fatal("extract subscriber did not receive event")
	}

	select {
	case <-loadCh:
		t.Fatal("load subscriber should NOT receive an EXTRACT event")
	case <-time.After(50 * time.Millisecond):
		// good
	}
}

func TestBus_PublishBatch(t *testing.T) {
	bus := New()
	defer bus.Close()

	received := make(chan Event, 100)
	bus.Subscribe("EXTRACT", received)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bus.Publish(Event{Stage: "EXTRACT", Processed: n})
		}(i)
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)
	if len(received) != 50 {
		t.Errorf("expected 50 events, got %d", len(received))
	}
}

func TestBus_ClosedDropsEvents(t *testing.T) {
	bus := New()
	received := make(chan Event, 1)
	bus.Subscribe("CLEAN", received)
	bus.Close()

	bus.Publish(Event{Stage: "CLEAN"})
	select {
	case <-received:
		t.Fatal("publish after Close should be a no-op")
	case <-time.After(50 * time.Millisecond):
	}
}
