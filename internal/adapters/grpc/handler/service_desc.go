package handler

import (
	"context"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// TimeTrackingServer は TimeTrackingService のサーバー側インターフェースです。
// メッセージは google.protobuf.Struct で運び、中身は wire パッケージの型で解釈します。
type TimeTrackingServer interface {
	StartWork(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopWork(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartBreak(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopBreak(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRunning(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordIdleTick(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateIdleReason(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReviewIdleSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImportSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(TimeTrackingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := wire.FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(TimeTrackingServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			next := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, next)
		},
	}
}

// TimeTrackingServiceDesc は TimeTrackingService のサービス定義です。
var TimeTrackingServiceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*TimeTrackingServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc(wire.MethodStartWork, TimeTrackingServer.StartWork),
		methodDesc(wire.MethodStopWork, TimeTrackingServer.StopWork),
		methodDesc(wire.MethodStartBreak, TimeTrackingServer.StartBreak),
		methodDesc(wire.MethodStopBreak, TimeTrackingServer.StopBreak),
		methodDesc(wire.MethodGetRunning, TimeTrackingServer.GetRunning),
		methodDesc(wire.MethodRecordIdleTick, TimeTrackingServer.RecordIdleTick),
		methodDesc(wire.MethodUpdateIdleReason, TimeTrackingServer.UpdateIdleReason),
		methodDesc(wire.MethodReviewIdleSession, TimeTrackingServer.ReviewIdleSession),
		methodDesc(wire.MethodGetSession, TimeTrackingServer.GetSession),
		methodDesc(wire.MethodListSessions, TimeTrackingServer.ListSessions),
		methodDesc(wire.MethodExportSessions, TimeTrackingServer.ExportSessions),
		methodDesc(wire.MethodImportSessions, TimeTrackingServer.ImportSessions),
		methodDesc(wire.MethodGetReport, TimeTrackingServer.GetReport),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "worktime/v1/time_tracking.proto",
}

// RegisterTimeTrackingServer はサービスを登録します。
func RegisterTimeTrackingServer(s grpc.ServiceRegistrar, srv TimeTrackingServer) {
	s.RegisterService(&TimeTrackingServiceDesc, srv)
}
