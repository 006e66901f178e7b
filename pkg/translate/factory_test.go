package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseEngineType(t *testing.T) {
	tests := []struct {
		in      string
		want    EngineType
		wantErr bool
	}{
		{in: "", want: EngineAuto},
		{in: "auto", want: EngineAuto},
		{in: "Auto", want: EngineAuto},
		{in: "libretranslate", want: EngineLibreTranslate},
		{in: " ARGOS ", want: EngineArgos},
		{in: "openai", want: EngineOpenAI},
		{in: "gemini", want: EngineGemini},
		{in: "google", want: EngineGoogle},
		{in: "lambda", want: EngineLambda},
		{in: "local", want: EngineLocal},
		{in: "pool", want: EnginePool},
		{in: "babelfish", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEngineType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEngineType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseEngineType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewTranslator_Engines(t *testing.T) {
	ctx := context.Background()

	t.Run("auto builds the default engine", func(t *testing.T) {
		tr, err := NewTranslator(ctx, Config{Logger: quietLogger()})
		if err != nil {
			t.Fatalf("NewTranslator: %v", err)
		}
		if _, ok := tr.(*LibreTranslateClient); !ok {
			t.Errorf("got %T, want *LibreTranslateClient", tr)
		}
	})

	t.Run("breaker wraps remote engines", func(t *testing.T) {
		tr, err := NewTranslator(ctx, Config{Engine: EngineArgos, Breaker: true, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("NewTranslator: %v", err)
		}
		b, ok := tr.(*BreakerTranslator)
		if !ok {
			t.Fatalf("got %T, want *BreakerTranslator", tr)
		}
		if _, ok := b.inner.(*ArgosClient); !ok {
			t.Errorf("inner = %T, want *ArgosClient", b.inner)
		}
	})

	t.Run("openai needs an endpoint", func(t *testing.T) {
		_, err := NewTranslator(ctx, Config{Engine: EngineOpenAI, Logger: quietLogger()})
		var engineErr *EngineError
		if !errors.As(err, &engineErr) || engineErr.Op != "create" {
			t.Errorf("error = %v, want create EngineError", err)
		}
	})

	t.Run("lambda needs a function name", func(t *testing.T) {
		if _, err := NewTranslator(ctx, Config{Engine: EngineLambda, Logger: quietLogger()}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("unknown engine", func(t *testing.T) {
		if _, err := NewTranslator(ctx, Config{Engine: "babelfish", Logger: quietLogger()}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewFactory_Fallback(t *testing.T) {
	var asked int
	factory := NewFactory(Config{Logger: quietLogger()}, func() EngineType {
		asked++
		return EngineArgos
	})

	tr, built, err := factory(context.Background(), EngineAuto)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := tr.(*ArgosClient); !ok {
		t.Errorf("got %T, want *ArgosClient", tr)
	}
	if built != EngineArgos {
		t.Errorf("built = %q, want %q", built, EngineArgos)
	}
	if asked != 1 {
		t.Errorf("fallback consulted %d times, want 1", asked)
	}

	tr, built, err = factory(context.Background(), EngineLibreTranslate)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if built != EngineLibreTranslate {
		t.Errorf("built = %q, want %q", built, EngineLibreTranslate)
	}
	if _, ok := tr.(*LibreTranslateClient); !ok {
		t.Errorf("got %T, want *LibreTranslateClient", tr)
	}
	if asked != 1 {
		t.Error("fallback must only be consulted for EngineAuto")
	}
}

func TestNewFactory_ReportsDefaultEngine(t *testing.T) {
	tests := []struct {
		name     string
		fallback func() EngineType
	}{
		{name: "no fallback"},
		{name: "fallback says auto", fallback: func() EngineType { return EngineAuto }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(Config{Logger: quietLogger()}, tt.fallback)
			tr, built, err := factory(context.Background(), EngineAuto)
			if err != nil {
				t.Fatalf("factory: %v", err)
			}
			if _, ok := tr.(*LibreTranslateClient); !ok {
				t.Errorf("got %T, want *LibreTranslateClient", tr)
			}
			if built != DefaultEngine {
				t.Errorf("built = %q, want %q", built, DefaultEngine)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	direct, err := buildPrompt(EngineOpenAI, "Hello", "en", "fr", ModeDirect)
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if want := "English (en) to French (fr)"; !strings.Contains(direct, want) {
		t.Errorf("prompt %q should mention %q", direct, want)
	}
	if !strings.Contains(direct, "\n\nHello") {
		t.Error("prompt should end with the text")
	}

	explain, err := buildPrompt(EngineOpenAI, "Hello", "en", "fr", ModeExplain)
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if !strings.Contains(explain, "notes") {
		t.Error("explain prompt should ask for notes")
	}

	if _, err := buildPrompt(EngineOpenAI, "Hello", "en", "fr", "poetic"); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("error = %v, want ErrUnsupportedMode", err)
	}
}
