package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "gemmagate.v1.TranslationService"
	// TranslateFullMethod is the full method name of the Translate RPC.
	TranslateFullMethod = "/" + ServiceName + "/Translate"
	// ErrorDomain is reported in ErrorInfo details.
	ErrorDomain = "gemmagate"
)

// TranslationServer is the server API for the TranslationService. Messages
// are google.protobuf.Struct values carrying the same fields as the HTTP API.
type TranslationServer interface {
	Translate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// TranslationService implements TranslationServer on top of a Resolver.
type TranslationService struct {
	Resolver *Resolver
	Logger   *logrus.Logger
}

// NewTranslationService creates a new TranslationService instance.
func NewTranslationService(resolver *Resolver, logger *logrus.Logger) *TranslationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TranslationService{
		Resolver: resolver,
		Logger:   logger,
	}
}

// Translate decodes the request struct, runs it through the resolver and
// encodes the result. Failures carry an ErrorInfo detail with the reason.
func (s *TranslationService) Translate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := decodeTranslateRequest(in)

	s.Logger.WithFields(logrus.Fields{
		"source_lang": req.SourceLang,
		"target_lang": req.TargetLang,
		"mode":        req.Mode,
		"backend":     req.Backend,
		"text_len":    len(req.Text),
	}).Debug("[gRPC] Translate request received")

	res, err := s.Resolver.Translate(ctx, req.Request())
	if err != nil {
		return nil, StatusError(err)
	}

	out, err := encodeTranslateResponse(NewTranslateResponse(res))
	if err != nil {
		s.Logger.WithError(err).Error("[gRPC] Failed to encode response")
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// StatusError converts a resolver error into a gRPC status error.
func StatusError(err error) error {
	if IsCanceled(err) {
		return status.FromContextError(err).Err()
	}

	var e *Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, err.Error())
	}

	code := codes.Internal
	switch {
	case e.Reason.ClientError():
		code = codes.InvalidArgument
	case e.Reason == ReasonEngineConstruction:
		code = codes.Unavailable
	}

	st := status.New(code, e.Message)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(e.Reason),
		Domain: ErrorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ReasonFromStatus extracts the reason from a status error produced by
// StatusError. It returns "" when err carries no ErrorInfo.
func ReasonFromStatus(err error) Reason {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return Reason(info.GetReason())
		}
	}
	return ""
}

func decodeTranslateRequest(in *structpb.Struct) TranslateRequest {
	fields := in.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}
	return TranslateRequest{
		Text:       str("text"),
		SourceLang: str("source_lang"),
		TargetLang: str("target_lang"),
		Mode:       str("mode"),
		Backend:    str("backend"),
	}
}

func encodeTranslateResponse(r TranslateResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"id":                   r.ID,
		"translation":          r.Translation,
		"detected_source":      r.DetectedSource,
		"detected_source_name": r.DetectedSourceName,
		"target_lang":          r.TargetLang,
		"target_lang_name":     r.TargetLangName,
		"backend":              r.Backend,
		"duration_seconds":     r.DurationSeconds,
		"completed_at":         r.CompletedAt,
	})
}

// EncodeTranslateRequest builds the request struct sent by clients.
func EncodeTranslateRequest(r TranslateRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"text":        r.Text,
		"source_lang": r.SourceLang,
		"target_lang": r.TargetLang,
		"mode":        r.Mode,
		"backend":     r.Backend,
	})
}

// DecodeTranslateResponse reads a response struct returned by the server.
func DecodeTranslateResponse(in *structpb.Struct) TranslateResponse {
	fields := in.GetFields()
	return TranslateResponse{
		ID:                 fields["id"].GetStringValue(),
		Translation:        fields["translation"].GetStringValue(),
		DetectedSource:     fields["detected_source"].GetStringValue(),
		DetectedSourceName: fields["detected_source_name"].GetStringValue(),
		TargetLang:         fields["target_lang"].GetStringValue(),
		TargetLangName:     fields["target_lang_name"].GetStringValue(),
		Backend:            fields["backend"].GetStringValue(),
		DurationSeconds:    fields["duration_seconds"].GetNumberValue(),
		CompletedAt:        fields["completed_at"].GetStringValue(),
	}
}

func _TranslationService_Translate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranslationServer).Translate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TranslateFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TranslationServer).Translate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TranslationServiceDesc is the grpc.ServiceDesc for TranslationService.
var TranslationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranslationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Translate",
			Handler:    _TranslationService_Translate_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gemmagate/v1/translation.proto",
}

// RegisterTranslationServiceServer registers srv on s.
func RegisterTranslationServiceServer(s grpc.ServiceRegistrar, srv TranslationServer) {
	s.RegisterService(&TranslationServiceDesc, srv)
}

// TranslationClient calls the TranslationService.
type TranslationClient struct {
	cc grpc.ClientConnInterface
}

// NewTranslationClient creates a client on cc.
func NewTranslationClient(cc grpc.ClientConnInterface) *TranslationClient {
	return &TranslationClient{cc: cc}
}

// Translate sends a raw request struct.
func (c *TranslationClient) Translate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TranslateFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TranslateText encodes req, calls Translate and decodes the response.
func (c *TranslationClient) TranslateText(ctx context.Context, req TranslateRequest, opts ...grpc.CallOption) (TranslateResponse, error) {
	in, err := EncodeTranslateRequest(req)
	if err != nil {
		return TranslateResponse{}, fmt.Errorf("encode request: %w", err)
	}
	out, err := c.Translate(ctx, in, opts...)
	if err != nil {
		return TranslateResponse{}, err
	}
	return DecodeTranslateResponse(out), nil
}
