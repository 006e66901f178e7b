package service

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startTestServer(t *testing.T, r *Resolver) *TranslationClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterTranslationServiceServer(s, NewTranslationService(r, quietLogger()))
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewTranslationClient(conn)
}

func TestTranslationService_Translate(t *testing.T) {
	engine := &fakeEngine{fn: func(text, source, target, mode string) (string, error) {
		return "Bonjour", nil
	}}
	r, _ := newTestResolver(engine, &fakeDetector{code: "en"})
	client := startTestServer(t, r)

	resp, err := client.TranslateText(context.Background(), TranslateRequest{
		Text:       "Hello",
		SourceLang: "auto",
		TargetLang: "auto",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if resp.Translation != "Bonjour" {
		t.Errorf("Translation = %q", resp.Translation)
	}
	if resp.DetectedSource != "en" || resp.DetectedSourceName != "English" {
		t.Errorf("source = %q (%q)", resp.DetectedSource, resp.DetectedSourceName)
	}
	if resp.TargetLang != "fr" || resp.TargetLangName != "French" {
		t.Errorf("target = %q (%q)", resp.TargetLang, resp.TargetLangName)
	}
	if resp.ID == "" || resp.CompletedAt == "" {
		t.Error("expected id and completed_at")
	}
}

func TestTranslationService_ErrorCodes(t *testing.T) {
	tests := []struct {
		name       string
		req        TranslateRequest
		buildErr   error
		engineErr  error
		wantCode   codes.Code
		wantReason Reason
	}{
		{
			name:       "blank text",
			req:        TranslateRequest{Text: "   "},
			wantCode:   codes.InvalidArgument,
			wantReason: ReasonInvalidInput,
		},
		{
			name:       "same language",
			req:        TranslateRequest{Text: "Bonjour", SourceLang: "fr", TargetLang: "fr"},
			wantCode:   codes.InvalidArgument,
			wantReason: ReasonSameLanguage,
		},
		{
			name:       "construction failure",
			req:        TranslateRequest{Text: "Hello"},
			buildErr:   errors.New("no GPU"),
			wantCode:   codes.Unavailable,
			wantReason: ReasonEngineConstruction,
		},
		{
			name:       "engine failure",
			req:        TranslateRequest{Text: "Hello"},
			engineErr:  errors.New("decoder crashed"),
			wantCode:   codes.Internal,
			wantReason: ReasonEngineFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{}
			if tt.engineErr != nil {
				engine.fn = func(text, source, target, mode string) (string, error) {
					return "", tt.engineErr
				}
			}
			r, factory := newTestResolver(engine, &fakeDetector{code: "en"})
			factory.setErr(tt.buildErr)
			client := startTestServer(t, r)

			_, err := client.TranslateText(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := status.Code(err); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
			if got := ReasonFromStatus(err); got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestStatusError_Unclassified(t *testing.T) {
	err := StatusError(errors.New("plain"))
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %s, want Internal", status.Code(err))
	}
	if ReasonFromStatus(err) != "" {
		t.Error("unclassified errors carry no ErrorInfo")
	}
	if status.Code(StatusError(context.Canceled)) != codes.Canceled {
		t.Error("cancellation should map to Canceled")
	}
}
