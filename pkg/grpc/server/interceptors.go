package server

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs every unary call with its duration and status.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		clientAddr := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			clientAddr = p.Addr.String()
		}

		resp, err := handler(ctx, req)
		duration := time.Since(start)

		if err != nil {
			st, _ := status.FromError(err)
			fields := []zap.Field{
				zap.String("method", info.FullMethod),
				zap.String("client_addr", clientAddr),
				zap.Duration("duration", duration),
				zap.String("status_code", st.Code().String()),
				zap.String("status_message", st.Message()),
			}
			switch st.Code() {
			case codes.Internal, codes.Unknown, codes.DeadlineExceeded:
				logger.Error("gRPC request failed", fields...)
			default:
				logger.Warn("gRPC request rejected", fields...)
			}
			return resp, err
		}

		logger.Info("gRPC request completed",
			zap.String("method", info.FullMethod),
			zap.String("client_addr", clientAddr),
			zap.Duration("duration", duration),
			zap.String("status_code", codes.OK.String()))
		return resp, nil
	}
}

// RecoveryInterceptor turns a handler panic into an Internal error.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC handler panicked",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
