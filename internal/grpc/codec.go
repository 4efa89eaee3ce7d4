package grpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeRequest copies the Struct into dst through its JSON form. Unknown
// fields are rejected.
func decodeRequest(in *structpb.Struct, dst any) error {
	if in == nil || len(in.GetFields()) == 0 {
		return nil
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

// encodeResponse converts v, which must encode as a JSON object, to a Struct.
func encodeResponse(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

// EncodeRequest is the client side counterpart of decodeRequest.
func EncodeRequest(v any) (*structpb.Struct, error) {
	return encodeResponse(v)
}

// DecodeResponse is the client side counterpart of encodeResponse.
func DecodeResponse(in *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
