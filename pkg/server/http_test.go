package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/gemmagate/pkg/config"
	"github.com/dasmlab/gemmagate/pkg/history"
	"github.com/dasmlab/gemmagate/pkg/service"
	"github.com/dasmlab/gemmagate/pkg/translate"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubEngine struct {
	translate func(ctx context.Context, text, source, target string) (string, error)
}

func (e *stubEngine) Translate(ctx context.Context, text, source, target, mode string) (string, error) {
	if e.translate != nil {
		return e.translate(ctx, text, source, target)
	}
	return "Bonjour", nil
}

func (e *stubEngine) CheckHealth(ctx context.Context) error { return nil }

func (e *stubEngine) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "fr"}, nil
}

type stubDetector string

func (d stubDetector) Detect(text string, candidates [2]string) string { return string(d) }

type stubHistory struct {
	limit   int
	entries []history.Entry
	err     error
}

func (h *stubHistory) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	h.limit = limit
	return h.entries, h.err
}

type testEnv struct {
	server *HTTPServer
	http   *httptest.Server
}

func newTestEnv(t *testing.T, engine translate.Translator, buildErr error, opts Options) *testEnv {
	t.Helper()
	factory := func(ctx context.Context, e translate.EngineType) (translate.Translator, translate.EngineType, error) {
		if buildErr != nil {
			return nil, e, buildErr
		}
		return engine, translate.EngineLibreTranslate, nil
	}
	provider := config.Static(config.Config{
		ModelSize:   "4b",
		Languages:   [2]string{"en", "fr"},
		OutputMode:  "direct",
		BackendType: "auto",
	})
	cache := service.NewEngineCache(factory, quietLogger())
	resolver := service.NewResolver(provider, stubDetector("en"), cache, service.WithLogger(quietLogger()))

	opts.Logger = quietLogger()
	s := NewHTTPServer(resolver, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: s, http: ts}
}

func (e *testEnv) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) translate(t *testing.T, body string, out interface{}) int {
	t.Helper()
	resp, err := http.Post(e.http.URL+"/api/translate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/translate: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealth_ReportsEngineReadiness(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, nil, Options{})

	var health struct {
		Status      string `json:"status"`
		Version     string `json:"version"`
		EngineReady bool   `json:"engine_ready"`
	}
	if code := env.get(t, "/api/health", &health); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if health.Status != "ok" || health.Version != Version || health.EngineReady {
		t.Errorf("health before first request = %+v", health)
	}

	if code := env.translate(t, `{"text":"Hello"}`, nil); code != http.StatusOK {
		t.Fatalf("translate status = %d", code)
	}

	env.get(t, "/api/health", &health)
	if !health.EngineReady {
		t.Error("engine should be ready after the first translation")
	}
}

func TestLanguagesAndConfig(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, nil, Options{})

	var langs struct {
		Languages map[string]string `json:"languages"`
	}
	if code := env.get(t, "/api/languages", &langs); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if langs.Languages["fr"] != "French" {
		t.Errorf("languages[fr] = %q", langs.Languages["fr"])
	}

	var cfg struct {
		Languages   []string `json:"languages"`
		BackendType string   `json:"backend_type"`
		ModelSize   string   `json:"model_size"`
	}
	if code := env.get(t, "/api/config", &cfg); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(cfg.Languages) != 2 || cfg.Languages[0] != "en" || cfg.Languages[1] != "fr" {
		t.Errorf("languages = %v", cfg.Languages)
	}
	if cfg.BackendType != "auto" || cfg.ModelSize != "4b" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestTranslate_Success(t *testing.T) {
	var gotSource, gotTarget string
	engine := &stubEngine{translate: func(ctx context.Context, text, source, target string) (string, error) {
		gotSource, gotTarget = source, target
		return "Bonjour", nil
	}}
	env := newTestEnv(t, engine, nil, Options{})

	var resp service.TranslateResponse
	code := env.translate(t, `{"text":"Hello","source_lang":"auto","target_lang":"auto"}`, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Translation != "Bonjour" || resp.DetectedSource != "en" || resp.TargetLang != "fr" {
		t.Errorf("response = %+v", resp)
	}
	if resp.TargetLangName != "French" || resp.Backend != "libretranslate" {
		t.Errorf("response = %+v", resp)
	}
	if gotSource != "en" || gotTarget != "fr" {
		t.Errorf("engine saw %s -> %s", gotSource, gotTarget)
	}
	if _, err := time.Parse(time.RFC3339Nano, resp.CompletedAt); err != nil {
		t.Errorf("completed_at %q: %v", resp.CompletedAt, err)
	}
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		buildErr   error
		engineErr  error
		wantCode   int
		wantReason service.Reason
		wantDetail string
	}{
		{
			name:       "blank text",
			body:       `{"text":"  "}`,
			wantCode:   http.StatusBadRequest,
			wantReason: service.ReasonInvalidInput,
			wantDetail: "Text cannot be empty",
		},
		{
			name:       "malformed json",
			body:       `{"text":`,
			wantCode:   http.StatusBadRequest,
			wantReason: service.ReasonInvalidInput,
		},
		{
			name:       "same language",
			body:       `{"text":"Bonjour","source_lang":"fr","target_lang":"fr"}`,
			wantCode:   http.StatusBadRequest,
			wantReason: service.ReasonSameLanguage,
			wantDetail: "Source and target languages are the same (fr)",
		},
		{
			name:       "construction failure",
			body:       `{"text":"Hello"}`,
			buildErr:   errors.New("model weights missing"),
			wantCode:   http.StatusServiceUnavailable,
			wantReason: service.ReasonEngineConstruction,
		},
		{
			name:       "engine failure",
			body:       `{"text":"Hello"}`,
			engineErr:  errors.New("out of memory"),
			wantCode:   http.StatusInternalServerError,
			wantReason: service.ReasonEngineFailure,
			wantDetail: "Translation failed: out of memory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &stubEngine{}
			if tt.engineErr != nil {
				engine.translate = func(ctx context.Context, text, source, target string) (string, error) {
					return "", tt.engineErr
				}
			}
			env := newTestEnv(t, engine, tt.buildErr, Options{})

			var resp service.ErrorResponse
			if code := env.translate(t, tt.body, &resp); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if resp.Reason != string(tt.wantReason) {
				t.Errorf("reason = %q, want %q", resp.Reason, tt.wantReason)
			}
			if tt.wantDetail != "" && resp.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", resp.Detail, tt.wantDetail)
			}
		})
	}
}

func TestTranslate_Timeout(t *testing.T) {
	engine := &stubEngine{translate: func(ctx context.Context, text, source, target string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	env := newTestEnv(t, engine, nil, Options{TranslateTimeout: 50 * time.Millisecond})

	if code := env.translate(t, `{"text":"Hello"}`, nil); code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", code)
	}
}

func TestTranslate_MethodAndSize(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, nil, Options{})

	resp, err := http.Get(env.http.URL + "/api/translate")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", resp.StatusCode)
	}

	big := fmt.Sprintf(`{"text":%q}`, strings.Repeat("a", maxBodyBytes+1))
	resp, err = http.Post(env.http.URL+"/api/translate", "application/json", bytes.NewReader([]byte(big)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want 400", resp.StatusCode)
	}
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, &stubEngine{}, nil, Options{})
		if code := env.get(t, "/api/history", nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		h := &stubHistory{entries: []history.Entry{{ID: "a", Text: "Hello", Translation: "Bonjour"}}}
		env := newTestEnv(t, &stubEngine{}, nil, Options{History: h})

		var out struct {
			Translations []history.Entry `json:"translations"`
		}
		if code := env.get(t, "/api/history?limit=5", &out); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if h.limit != 5 {
			t.Errorf("limit = %d, want 5", h.limit)
		}
		if len(out.Translations) != 1 || out.Translations[0].Translation != "Bonjour" {
			t.Errorf("translations = %+v", out.Translations)
		}

		env.get(t, "/api/history", &out)
		if h.limit != history.DefaultLimit {
			t.Errorf("default limit = %d", h.limit)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		env := newTestEnv(t, &stubEngine{}, nil, Options{History: &stubHistory{}})
		for _, q := range []string{"abc", "0", "-3"} {
			if code := env.get(t, "/api/history?limit="+q, nil); code != http.StatusBadRequest {
				t.Errorf("limit=%s status = %d, want 400", q, code)
			}
		}
	})

	t.Run("read failure", func(t *testing.T) {
		env := newTestEnv(t, &stubEngine{}, nil, Options{History: &stubHistory{err: errors.New("disk I/O error")}})
		if code := env.get(t, "/api/history", nil); code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", code)
		}
	})
}

func TestIndex(t *testing.T) {
	readBody := func(t *testing.T, url string) (int, string) {
		t.Helper()
		resp, err := http.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	t.Run("fallback page", func(t *testing.T) {
		env := newTestEnv(t, &stubEngine{}, nil, Options{StaticDir: t.TempDir()})
		code, body := readBody(t, env.http.URL+"/")
		if code != http.StatusOK || !strings.Contains(body, "Web UI not found") {
			t.Errorf("status = %d body = %q", code, body)
		}
		if code, _ := readBody(t, env.http.URL+"/missing"); code != http.StatusNotFound {
			t.Errorf("unknown path status = %d", code)
		}
	})

	t.Run("static files", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>gateway</h1>"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
			t.Fatal(err)
		}
		env := newTestEnv(t, &stubEngine{}, nil, Options{StaticDir: dir})

		if _, body := readBody(t, env.http.URL+"/"); !strings.Contains(body, "gateway") {
			t.Errorf("index body = %q", body)
		}
		if code, body := readBody(t, env.http.URL+"/static/app.js"); code != http.StatusOK || body != "console.log(1)" {
			t.Errorf("static status = %d body = %q", code, body)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, nil, Options{})
	env.translate(t, `{"text":"Hello"}`, nil)

	resp, err := http.Get(env.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "gemmagate_translation_requests_total") {
		t.Error("metrics should include the request counter")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: service.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "same language", err: service.ErrSameLanguage, want: http.StatusBadRequest},
		{name: "construction", err: service.ErrEngineConstruction, want: http.StatusServiceUnavailable},
		{name: "engine", err: service.ErrEngineFailure, want: http.StatusInternalServerError},
		{name: "deadline", err: fmt.Errorf("translate: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "unclassified", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode = %d, want %d", got, tt.want)
			}
		})
	}
}
