package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/plantlog/internal/notify"
	"github.com/alfredjeanlab/plantlog/internal/rpcjson"
)

// NewGRPCServer returns a gRPC server with the PlantLog service registered.
// Messages are JSON encoded; see package rpcjson.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoveryInterceptor, LoggingInterceptor, AuthInterceptor(authToken)),
		grpc.ChainStreamInterceptor(StreamRecoveryInterceptor, StreamAuthInterceptor(authToken)),
	)
	gs.RegisterService(&serviceDesc, s)
	return gs
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: rpcjson.ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: unary(rpcjson.MethodHealth, (*Server).rpcHealth)},
		{MethodName: "GetEventTypes", Handler: unary(rpcjson.MethodGetEventTypes, (*Server).rpcGetEventTypes)},
		{MethodName: "GetEventType", Handler: unary(rpcjson.MethodGetEventType, (*Server).rpcGetEventType)},
		{MethodName: "CreateEventType", Handler: unary(rpcjson.MethodCreateEventType, (*Server).rpcCreateEventType)},
		{MethodName: "PutEvent", Handler: unary(rpcjson.MethodPutEvent, (*Server).rpcPutEvent)},
		{MethodName: "GetEvents", Handler: unary(rpcjson.MethodGetEvents, (*Server).rpcGetEvents)},
		{MethodName: "AddPhoto", Handler: unary(rpcjson.MethodAddPhoto, (*Server).rpcAddPhoto)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamDirty", Handler: streamDirtyHandler, ServerStreams: true},
	},
}

type unaryHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unary adapts a typed Server method to a grpc.MethodDesc handler.
func unary[Req, Resp any](method string, call func(*Server, context.Context, *Req) (*Resp, error)) unaryHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		handler := func(ctx context.Context, r any) (any, error) {
			resp, err := call(srv.(*Server), ctx, r.(*Req))
			if err != nil {
				return nil, grpcError(err)
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: method}, handler)
	}
}

func (s *Server) rpcHealth(ctx context.Context, _ *rpcjson.HealthRequest) (*rpcjson.HealthResponse, error) {
	if err := s.Health(ctx); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &rpcjson.HealthResponse{Status: "ok"}, nil
}

func (s *Server) rpcGetEventTypes(ctx context.Context, req *rpcjson.GetEventTypesRequest) (*rpcjson.GetEventTypesResponse, error) {
	types, err := s.EventTypes(ctx, req.Since)
	if err != nil {
		return nil, err
	}
	return &rpcjson.GetEventTypesResponse{EventTypes: types}, nil
}

func (s *Server) rpcGetEventType(ctx context.Context, req *rpcjson.GetEventTypeRequest) (*rpcjson.EventTypeResponse, error) {
	et, err := s.EventType(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &rpcjson.EventTypeResponse{EventType: et}, nil
}

func (s *Server) rpcCreateEventType(ctx context.Context, req *rpcjson.CreateEventTypeRequest) (*rpcjson.EventTypeResponse, error) {
	et, err := s.CreateEventType(ctx, req.EventType)
	if err != nil {
		return nil, err
	}
	return &rpcjson.EventTypeResponse{EventType: et}, nil
}

func (s *Server) rpcPutEvent(ctx context.Context, req *rpcjson.PutEventRequest) (*rpcjson.PutEventResponse, error) {
	ev, err := s.PutEvent(ctx, req.Event)
	if err != nil {
		return nil, err
	}
	return &rpcjson.PutEventResponse{Event: ev}, nil
}

func (s *Server) rpcGetEvents(ctx context.Context, req *rpcjson.GetEventsRequest) (*rpcjson.GetEventsResponse, error) {
	evs, err := s.GetEvents(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return &rpcjson.GetEventsResponse{Events: evs}, nil
}

func (s *Server) rpcAddPhoto(ctx context.Context, req *rpcjson.AddPhotoRequest) (*rpcjson.AddPhotoResponse, error) {
	p, ev, err := s.AddPhoto(ctx, req.EntityID, req.ContentType, req.TakenAt, req.Data)
	if err != nil {
		return nil, err
	}
	return &rpcjson.AddPhotoResponse{Photo: p, Event: ev}, nil
}

// streamDirtyHandler sends notify.Frame messages until the client goes away.
// An evicted stream ends with Unavailable so the client reconnects with its
// last frame id.
func streamDirtyHandler(srv any, stream grpc.ServerStream) error {
	s := srv.(*Server)
	var req rpcjson.StreamDirtyRequest
	if err := stream.RecvMsg(&req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	err := s.hub.Stream(stream.Context(), req.LastID, notify.StreamOptions{}, func(f notify.Frame) error {
		return stream.SendMsg(&f)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, notify.ErrEvicted):
		return status.Error(codes.Unavailable, err.Error())
	}
	return err
}
