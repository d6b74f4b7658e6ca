package runner_test

import (
	"testing"

	"github.com/seantiz/forge/internal/runner"
)

func TestBrokerSingleSubscriber(t *testing.T) {
	b := runner.NewBroker()
	ch, unsub := b.Subscribe("r1")
	defer unsub()

	lines := []string{"gen 0", "gen 1", "gen 2"}
	for _, l := range lines {
		b.Publish("r1", l)
	}
	b.Close("r1")

	var got []string
	for l := range ch {
		got = append(got, l)
	}

	if len(got) != len(lines) {
		t.Fatalf("got %d lines, want %d", len(got), len(lines))
	}
	for i, l := range got {
		if l != lines[i] {
			t.Errorf("line[%d] = %q, want %q", i, l, lines[i])
		}
	}
}

func TestBrokerMultipleSubscribers(t *testing.T) {
	b := runner.NewBroker()
	ch1, unsub1 := b.Subscribe("r1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("r1")
	defer unsub2()

	b.Publish("r1", "hello")
	b.Close("r1")

	for i, ch := range []<-chan string{ch1, ch2} {
		var got []string
		for l := range ch {
			got = append(got, l)
		}
		if len(got) != 1 || got[0] != "hello" {
			t.Errorf("subscriber %d got %v, want [hello]", i+1, got)
		}
	}
}

func TestBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := runner.NewBroker()
	b.Publish("r1", "early")
	b.Close("r1")

	ch, unsub := b.Subscribe("r1")
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := runner.NewBroker()
	ch, unsub := b.Subscribe("r1")
	unsub()

	b.Publish("r1", "after unsub")
	b.Close("r1")

	if l, ok := <-ch; ok {
		t.Errorf("got unexpected line %q after unsubscribe", l)
	}
	// A second unsubscribe must not close the channel twice.
	unsub()
}

func TestBrokerPublishToUnknownRunIsNoop(t *testing.T) {
	b := runner.NewBroker()
	b.Publish("nonexistent", "line")
	b.Close("nonexistent")
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := runner.NewBroker()
	ch, unsub := b.Subscribe("r1")
	defer unsub()

	for range 100 {
		b.Publish("r1", "x")
	}
	b.Close("r1")

	n := 0
	for range ch {
		n++
	}
	if n != 64 {
		t.Errorf("received %d lines, want the 64 buffered", n)
	}
}
