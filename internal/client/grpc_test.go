package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/server"
	"github.com/alfredjeanlab/plantlog/internal/store/memstore"
)

func newGRPCPair(t *testing.T) (*GRPCClient, *server.Server) {
	t.Helper()
	s := server.New(memstore.New(), server.Options{})
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	gs := server.NewGRPCServer(s, "secret")
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///"+lis.Addr().String(), "secret")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestGRPCClient_RoundTrip(t *testing.T) {
	c, _ := newGRPCPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if st, err := c.Health(ctx); err != nil || st != "ok" {
		t.Fatalf("Health = %q, %v", st, err)
	}
	et, err := c.CreateEventType(ctx, model.NewEventType{Name: "display-name", Kind: model.StringKind(), IsUnique: true})
	if err != nil {
		t.Fatalf("CreateEventType: %v", err)
	}
	plant := uuid.New()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	first, err := c.PutEvent(ctx, model.NewEvent{EventTypeID: et.ID, EntityID: plant, Data: model.String{Value: "Fern"}, EventDate: day})
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	second, err := c.PutEvent(ctx, model.NewEvent{EventTypeID: et.ID, EntityID: plant, Data: model.String{Value: "Boston Fern"}, EventDate: day.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("unique upsert changed id")
	}

	got, err := c.GetEvents(ctx, model.EventQuery{EventTypeID: et.ID, EntityID: plant, Mode: model.All()})
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(got) != 1 || got[0].Data != (model.String{Value: "Boston Fern"}) {
		t.Errorf("events = %+v", got)
	}

	types, err := c.EventTypes(ctx, time.Time{})
	if err != nil || len(types) != 2 {
		t.Errorf("EventTypes = %d, %v", len(types), err)
	}
}

func TestGRPCClient_Errors(t *testing.T) {
	c, _ := newGRPCPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.EventType(ctx, uuid.New())
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown type: %v", err)
	}

	et, err := c.CreateEventType(ctx, model.NewEventType{Name: "height", Kind: model.NumberKind()})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.PutEvent(ctx, model.NewEvent{EventTypeID: et.ID, EntityID: uuid.New(), Data: model.String{Value: "tall"}})
	if !errors.Is(err, model.ErrKindMismatch) {
		t.Errorf("kind mismatch: %v", err)
	}
}

func TestGRPCClient_Dirty(t *testing.T) {
	fastRetry(t)
	c, s := newGRPCPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := c.Dirty(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Observers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	et, err := s.CreateEventType(ctx, model.NewEventType{Name: "repotted", Kind: model.DateTimeKind()})
	if err != nil {
		t.Fatal(err)
	}
	if m := recvDirty(t, ch); m.Resync || m.Notification != model.EventTypeDirty(et.ID) {
		t.Fatalf("message = %+v", m)
	}
}

func TestFromStatus(t *testing.T) {
	for _, tc := range []struct {
		err       error
		want      error
		transport bool
	}{
		{status.Error(codes.NotFound, "x"), model.ErrNotFound, false},
		{status.Error(codes.FailedPrecondition, "x"), model.ErrKindMismatch, false},
		{status.Error(codes.Internal, "storage: insert: boom"), model.ErrStorage, false},
		{status.Error(codes.Unavailable, "down"), ErrTransport, true},
		{errors.New("dial"), ErrTransport, true},
	} {
		err := fromStatus("op", tc.err)
		if !errors.Is(err, tc.want) {
			t.Errorf("fromStatus(%v) = %v, want Is %v", tc.err, err, tc.want)
		}
		if errors.Is(err, ErrTransport) != tc.transport {
			t.Errorf("fromStatus(%v) transport = %v", tc.err, !tc.transport)
		}
	}
}
