package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// FeedbackReportsServiceName is the fully qualified gRPC service name.
const FeedbackReportsServiceName = "feedback.v1.FeedbackReports"

// Every method takes and returns a google.protobuf.Struct holding the JSON
// shape of the corresponding request and response types.
type FeedbackReportsServer interface {
	GetSummaryReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalysisReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDepartmentSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetFacultyDetail(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(FeedbackReportsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call structMethod) grpc.MethodDesc {
	fullMethod := "/" + FeedbackReportsServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FeedbackReportsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(FeedbackReportsServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var feedbackReportsServiceDesc = grpc.ServiceDesc{
	ServiceName: FeedbackReportsServiceName,
	HandlerType: (*FeedbackReportsServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetSummaryReport", FeedbackReportsServer.GetSummaryReport),
		unaryHandler("GetAnalysisReport", FeedbackReportsServer.GetAnalysisReport),
		unaryHandler("GetDepartmentSummary", FeedbackReportsServer.GetDepartmentSummary),
		unaryHandler("GetFacultyDetail", FeedbackReportsServer.GetFacultyDetail),
		unaryHandler("ExportFeedback", FeedbackReportsServer.ExportFeedback),
		unaryHandler("SubmitFeedback", FeedbackReportsServer.SubmitFeedback),
		unaryHandler("ResetFeedback", FeedbackReportsServer.ResetFeedback),
		unaryHandler("GetSession", FeedbackReportsServer.GetSession),
		unaryHandler("ToggleSession", FeedbackReportsServer.ToggleSession),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "feedback/v1/feedback.proto",
}

func RegisterFeedbackReportsServer(s grpc.ServiceRegistrar, srv FeedbackReportsServer) {
	s.RegisterService(&feedbackReportsServiceDesc, srv)
}

// Client invokes FeedbackReports methods over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes method (for example "GetSummaryReport") with in.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+FeedbackReportsServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
