package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"ride-relay/internal/models"
)

const notifyMethod = "/relay.Dispatch/Notify"

// Notifier is the targeted dispatcher as seen by transports.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (bool, error)
}

type dispatchService interface {
	Notify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// DispatchServer exposes targeted delivery to trip-lifecycle services.
// Requests and replies are google.protobuf.Struct:
//
//	request: {connection_handle?, participant_id?, participant_kind?, event, data?}
//	reply:   {delivered: bool}
type DispatchServer struct {
	notifier Notifier
}

// NewDispatchServer constructs a DispatchServer.
func NewDispatchServer(notifier Notifier) *DispatchServer {
	return &DispatchServer{notifier: notifier}
}

// Notify delivers one event. An offline target is not an error.
func (s *DispatchServer) Notify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := notificationFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	delivered, err := s.notifier.Notify(ctx, n)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return structpb.NewStruct(map[string]interface{}{"delivered": delivered})
}

func notificationFromStruct(req *structpb.Struct) (models.Notification, error) {
	fields := req.GetFields()
	n := models.Notification{
		ConnectionHandle: fields["connection_handle"].GetStringValue(),
		ParticipantID:    fields["participant_id"].GetStringValue(),
		ParticipantKind:  fields["participant_kind"].GetStringValue(),
		Event:            fields["event"].GetStringValue(),
	}
	if data, ok := fields["data"]; ok {
		raw, err := json.Marshal(data.AsInterface())
		if err != nil {
			return models.Notification{}, err
		}
		n.Data = raw
	}
	return n, nil
}

// RegisterDispatchServer registers srv on a gRPC server.
func RegisterDispatchServer(s grpc.ServiceRegistrar, srv *DispatchServer) {
	s.RegisterService(&dispatchServiceDesc, srv)
}

var dispatchServiceDesc = grpc.ServiceDesc{
	ServiceName: "relay.Dispatch",
	HandlerType: (*dispatchService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Notify", Handler: notifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "relay/dispatch.proto",
}

func notifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(dispatchService).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: notifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(dispatchService).Notify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
