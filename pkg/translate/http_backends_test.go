package translate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLibreTranslateClient_Translate(t *testing.T) {
	var got libreTranslateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(libreTranslateResponse{TranslatedText: "Bonjour"})
	}))
	defer srv.Close()

	c := NewLibreTranslateClient(srv.URL, time.Second, quietLogger())
	out, err := c.Translate(context.Background(), "Hello", "EN", "fr-CA", ModeDirect)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Bonjour" {
		t.Errorf("Translate = %q, want Bonjour", out)
	}
	if got.Q != "Hello" || got.Source != "en" || got.Target != "fr" || got.Format != "text" {
		t.Errorf("request = %+v", got)
	}
}

func TestLibreTranslateClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		mode    string
		wantIs  error
	}{
		{
			name: "non-OK status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
		},
		{
			name: "backend error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(libreTranslateResponse{Error: "unsupported pair"})
			},
		},
		{
			name:   "explain mode",
			mode:   ModeExplain,
			wantIs: ErrUnsupportedMode,
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("backend must not be called for an unsupported mode")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewLibreTranslateClient(srv.URL, time.Second, quietLogger())
			_, err := c.Translate(context.Background(), "Hello", "en", "fr", tt.mode)
			if err == nil {
				t.Fatal("expected error")
			}
			var engineErr *EngineError
			if !errors.As(err, &engineErr) || engineErr.Engine != EngineLibreTranslate {
				t.Errorf("error %v should be an EngineError for libretranslate", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error %v should match %v", err, tt.wantIs)
			}
		})
	}
}

func TestLibreTranslateClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewLibreTranslateClient(url, time.Second, quietLogger())
	if _, err := c.Translate(context.Background(), "Hello", "en", "fr", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if err := c.CheckHealth(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CheckHealth = %v, want ErrUnavailable", err)
	}
}

func TestLibreTranslateClient_SupportedLanguages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]libreLanguage{{Code: "en", Name: "English"}, {Code: "fr", Name: "French"}})
	}))
	defer srv.Close()

	c := NewLibreTranslateClient(srv.URL, time.Second, quietLogger())
	langs, err := c.SupportedLanguages(context.Background())
	if err != nil {
		t.Fatalf("SupportedLanguages: %v", err)
	}
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "fr" {
		t.Errorf("languages = %v", langs)
	}
	if err := c.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth: %v", err)
	}
}

func TestArgosClient(t *testing.T) {
	var got argosTranslateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/translate":
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(argosTranslateResponse{TranslatedText: "Hallo"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewArgosClient(srv.URL, time.Second, quietLogger())
	if err := c.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	out, err := c.Translate(context.Background(), "Hello", "en_US", "de", "")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Hallo" {
		t.Errorf("Translate = %q", out)
	}
	if got.SourceLang != "en" || got.TargetLang != "de" {
		t.Errorf("request = %+v", got)
	}
}

func TestArgosClient_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewArgosClient(srv.URL, time.Second, quietLogger())
	if err := c.CheckHealth(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CheckHealth = %v, want ErrUnavailable", err)
	}
}

func TestLanguageMapper_ToBackendCode(t *testing.T) {
	m := NewLanguageMapper()
	tests := map[string]string{
		"EN":      "en",
		"fr-CA":   "fr",
		"en_US":   "en",
		" de ":    "de",
		"zh-Hant": "zh",
	}
	for in, want := range tests {
		if got := m.ToBackendCode(in); got != want {
			t.Errorf("ToBackendCode(%q) = %q, want %q", in, got, want)
		}
	}
}
