package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName    = "apptslots.slots.v1.SlotService"
	getSlotsMethod = "/" + ServiceName + "/GetSlots"
)

// SlotServiceServer is the server API. Requests and responses are google.protobuf.Struct
// values using the HTTP field names.
type SlotServiceServer interface {
	GetSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SlotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSlots", Handler: getSlotsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "apptslots/slots/v1/slots.proto",
}

func getSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotServiceServer).GetSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getSlotsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SlotServiceServer).GetSlots(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type SlotQuerier interface {
	GetSlots(ctx context.Context, q slots.Query) (slots.Result, error)
}

type server struct {
	engine SlotQuerier
	logger *slog.Logger
}

// Register installs the slot service and the standard health service on s. The returned
// health server reports SERVING until the caller changes it.
func Register(s *grpc.Server, engine SlotQuerier, logger *slog.Logger) *health.Server {
	s.RegisterService(&serviceDesc, &server{engine: engine, logger: logger})
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

func (s *server) GetSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	q := slots.Query{
		AppointmentTypeID: fields["appointment_type_id"].GetStringValue(),
		ViewerTimezone:    fields["timezone"].GetStringValue(),
		ChosenStaffUserID: fields["staff_user_id"].GetStringValue(),
	}
	if q.AppointmentTypeID == "" {
		return nil, status.Error(codes.InvalidArgument, "appointment_type_id is required")
	}
	if raw := fields["reference"].GetStringValue(); raw != "" {
		ref, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "reference must be an RFC3339 timestamp")
		}
		q.Reference = ref.UTC()
	}

	res, err := s.engine.GetSlots(ctx, q)
	if err != nil {
		code := codeFor(err)
		if code == codes.Internal || code == codes.Unavailable {
			s.logger.Error("slot query failed", "appointment_type_id", q.AppointmentTypeID, "err", err)
		}
		return nil, status.Error(code, "no availability")
	}
	out, err := toStruct(res)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, slots.ErrConfig):
		return codes.InvalidArgument
	case errors.Is(err, slots.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, slots.ErrCollaborator):
		return codes.Unavailable
	case errors.Is(err, slots.ErrTimeout):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// toStruct converts through JSON so the message carries exactly the HTTP field names.
func toStruct(res slots.Result) (*structpb.Struct, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
