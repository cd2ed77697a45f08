package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

var (
	_ Publisher  = (*NoopPublisher)(nil)
	_ Publisher  = (*NATSPublisher)(nil)
	_ Subscriber = (*NATSSubscriber)(nil)
)

func TestTopicFor(t *testing.T) {
	id := uuid.New()
	for _, tc := range []struct {
		n    model.DirtyNotification
		want string
	}{
		{model.EntityDirty(id), TopicDirtyEntity},
		{model.EventDirty(id, id, time.Now()), TopicDirtyEvent},
		{model.EventTypeDirty(id), TopicDirtyEventType},
	} {
		if got := TopicFor(tc.n); got != tc.want {
			t.Errorf("TopicFor(%s) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestPublishDirty_RoundTripOverNATS(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	s, err := sub.SubscribeDirty(TopicDirtyAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer s.Unsubscribe()

	plant, watered := uuid.New(), uuid.New()
	date := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sent := []model.DirtyNotification{
		model.EventDirty(plant, watered, date),
		model.EntityDirty(plant),
		model.EventTypeDirty(watered),
	}
	for _, n := range sent {
		if err := pub.PublishDirty(context.Background(), n); err != nil {
			t.Fatalf("PublishDirty: %v", err)
		}
	}
	if err := pub.Flush(); err != nil {
		t.Fatal(err)
	}

	for i, want := range sent {
		select {
		case got := <-s.C():
			if got.Kind != want.Kind || got.EntityID != want.EntityID || got.EventTypeID != want.EventTypeID || !got.EventDate.Equal(want.EventDate) {
				t.Errorf("message %d = %+v, want %+v", i, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	if s.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", s.Dropped())
	}
}

func TestPublishDirty_KindHeader(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	raw, err := nc.SubscribeSync(TopicDirtyEventType)
	if err != nil {
		t.Fatal(err)
	}
	nc.Flush()

	if err := pub.PublishDirty(context.Background(), model.EventTypeDirty(uuid.New())); err != nil {
		t.Fatal(err)
	}
	msg, err := raw.NextMsg(time.Second)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	if got := msg.Header.Get(HeaderKind); got != string(model.DirtyEventType) {
		t.Errorf("%s = %q", HeaderKind, got)
	}
}

func TestPublishDirty_CancelledContext(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.PublishDirty(ctx, model.EntityDirty(uuid.New())); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDecodeDirty_Invalid(t *testing.T) {
	for _, payload := range []string{`not json`, `{"type":"event"}`, `{"type":"bogus"}`} {
		if _, err := DecodeDirty([]byte(payload)); err == nil {
			t.Errorf("DecodeDirty(%s) = nil error", payload)
		}
	}
}

func TestSubscription_SkipsMalformed(t *testing.T) {
	url := startTestNATS(t)
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	s, err := sub.SubscribeDirty(TopicDirtyAll)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Unsubscribe()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	good := model.EntityDirty(uuid.New())
	data, _ := EncodeDirty(good)
	nc.Publish(TopicDirtyEntity, []byte(`{"type":"bogus"}`))
	nc.Publish(TopicDirtyEntity, data)
	nc.Flush()

	select {
	case got := <-s.C():
		if got != good {
			t.Errorf("got %+v, want %+v", got, good)
		}
	case <-time.After(time.Second):
		t.Fatal("valid payload not delivered")
	}
}

func TestSubscription_UnsubscribeClosesChannel(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	s, err := sub.SubscribeDirty(TopicDirtyAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.PublishDirty(context.Background(), model.EntityDirty(uuid.New()))
		}
		pub.Flush()
	}()

	// Unsubscribing while messages arrive must not panic, and a second call is a no-op.
	s.Unsubscribe()
	s.Unsubscribe()
	<-done

	for range s.C() {
	}
}

func TestSubscription_CountsDrops(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	s, err := sub.SubscribeDirty(TopicDirtyAll)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Unsubscribe()

	// Nobody reads C, so everything past the buffer is dropped.
	for i := 0; i < subscriptionBuffer+10; i++ {
		if err := pub.PublishDirty(context.Background(), model.EntityDirty(uuid.New())); err != nil {
			t.Fatal(err)
		}
	}
	pub.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for s.Dropped() < 10 {
		if time.Now().After(deadline) {
			t.Fatalf("Dropped() = %d, want 10", s.Dropped())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
