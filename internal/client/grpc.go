package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/notify"
	"github.com/alfredjeanlab/plantlog/internal/rpcjson"
)

// GRPCClient implements Client using the gRPC transport with the JSON codec.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcjson.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return fromStatus(method, c.conn.Invoke(ctx, method, req, resp))
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp rpcjson.HealthResponse
	if err := c.invoke(ctx, rpcjson.MethodHealth, &rpcjson.HealthRequest{}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- Event types ---

func (c *GRPCClient) EventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error) {
	var resp rpcjson.GetEventTypesResponse
	if err := c.invoke(ctx, rpcjson.MethodGetEventTypes, &rpcjson.GetEventTypesRequest{Since: since}, &resp); err != nil {
		return nil, err
	}
	return resp.EventTypes, nil
}

func (c *GRPCClient) EventType(ctx context.Context, id uuid.UUID) (*model.EventType, error) {
	var resp rpcjson.EventTypeResponse
	if err := c.invoke(ctx, rpcjson.MethodGetEventType, &rpcjson.GetEventTypeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return resp.EventType, nil
}

func (c *GRPCClient) CreateEventType(ctx context.Context, n model.NewEventType) (*model.EventType, error) {
	var resp rpcjson.EventTypeResponse
	if err := c.invoke(ctx, rpcjson.MethodCreateEventType, &rpcjson.CreateEventTypeRequest{EventType: n}, &resp); err != nil {
		return nil, err
	}
	return resp.EventType, nil
}

// --- Events ---

func (c *GRPCClient) PutEvent(ctx context.Context, n model.NewEvent) (*model.EventInstance, error) {
	var resp rpcjson.PutEventResponse
	if err := c.invoke(ctx, rpcjson.MethodPutEvent, &rpcjson.PutEventRequest{Event: n}, &resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

func (c *GRPCClient) GetEvents(ctx context.Context, q model.EventQuery) ([]*model.EventInstance, error) {
	var resp rpcjson.GetEventsResponse
	if err := c.invoke(ctx, rpcjson.MethodGetEvents, &rpcjson.GetEventsRequest{Query: q}, &resp); err != nil {
		return nil, err
	}
	if resp.Events == nil {
		resp.Events = []*model.EventInstance{}
	}
	return resp.Events, nil
}

func (c *GRPCClient) AddPhoto(ctx context.Context, entity uuid.UUID, contentType string, takenAt time.Time, data []byte) (*model.Photo, *model.EventInstance, error) {
	var resp rpcjson.AddPhotoResponse
	req := &rpcjson.AddPhotoRequest{EntityID: entity, ContentType: contentType, TakenAt: takenAt, Data: data}
	if err := c.invoke(ctx, rpcjson.MethodAddPhoto, req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Photo, resp.Event, nil
}

// --- Notifications ---

// Dirty follows the StreamDirty RPC, resuming from the last frame id after
// a disconnect.
func (c *GRPCClient) Dirty(ctx context.Context) <-chan DirtyMessage {
	out := make(chan DirtyMessage, 64)
	go func() {
		defer close(out)
		var (
			lastID   string
			attempts int
			b        backoff
		)
		for {
			received, err := c.streamOnce(ctx, &lastID, attempts > 0, out)
			if ctx.Err() != nil {
				return
			}
			attempts++
			if received {
				b.reset()
			}
			slog.Warn("dirty stream disconnected", "last_id", lastID, "error", err)
			if !b.wait(ctx) {
				return
			}
		}
	}()
	return out
}

func (c *GRPCClient) streamOnce(ctx context.Context, lastID *string, reconnect bool, out chan<- DirtyMessage) (received bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	st, err := c.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, rpcjson.MethodStreamDirty)
	if err != nil {
		return false, fromStatus(rpcjson.MethodStreamDirty, err)
	}
	// Send errors surface on the first RecvMsg.
	_ = st.SendMsg(&rpcjson.StreamDirtyRequest{LastID: *lastID})
	_ = st.CloseSend()

	for {
		var f notify.Frame
		if err := st.RecvMsg(&f); err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("server closed the stream")
			}
			return received, fromStatus(rpcjson.MethodStreamDirty, err)
		}
		received = true
		var msg DirtyMessage
		ok := true
		switch {
		case f.Type == notify.FrameResync:
			msg.Resync = true
		case f.Type == notify.FrameReady:
			ok = reconnect && *lastID == ""
			msg.Resync = ok
		case f.Notification != nil:
			msg.Notification = *f.Notification
		default:
			ok = false
		}
		*lastID = f.ID
		if ok && !emit(ctx, out, msg) {
			return received, ctx.Err()
		}
	}
}

// fromStatus maps gRPC status errors onto APIError and TransportError so
// callers see the same errors from both transports.
func fromStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &TransportError{Op: op, Err: err}
	}
	switch st.Code() {
	case codes.NotFound:
		return &APIError{StatusCode: http.StatusNotFound, Code: "not_found", Message: st.Message()}
	case codes.FailedPrecondition:
		return &APIError{StatusCode: http.StatusUnprocessableEntity, Code: "kind_mismatch", Message: st.Message()}
	case codes.InvalidArgument:
		return &APIError{StatusCode: http.StatusBadRequest, Code: "invalid", Message: st.Message()}
	case codes.Unauthenticated:
		return &APIError{StatusCode: http.StatusUnauthorized, Code: "unauthorized", Message: st.Message()}
	case codes.Internal:
		code := "internal"
		if strings.HasPrefix(st.Message(), "storage:") {
			code = "storage"
		}
		return &APIError{StatusCode: http.StatusInternalServerError, Code: code, Message: st.Message()}
	}
	return &TransportError{Op: op, Err: err}
}
