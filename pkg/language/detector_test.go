package language

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLinguaDetector_Pair(t *testing.T) {
	d := NewLinguaDetector(quietLogger())

	tests := []struct {
		name       string
		text       string
		candidates [2]string
		want       string
	}{
		{
			name:       "english",
			text:       "The weather is lovely today and we are going to the beach.",
			candidates: [2]string{"en", "fr"},
			want:       "en",
		},
		{
			name:       "french",
			text:       "Je suis très content de vous voir aujourd'hui, mes amis.",
			candidates: [2]string{"en", "fr"},
			want:       "fr",
		},
		{
			name:       "candidate order does not matter",
			text:       "Je suis très content de vous voir aujourd'hui, mes amis.",
			candidates: [2]string{"fr", "en"},
			want:       "fr",
		},
		{
			name:       "regional candidate keeps its spelling",
			text:       "Eu gosto muito de viajar com a minha família durante as férias.",
			candidates: [2]string{"en", "pt-BR"},
			want:       "pt-BR",
		},
		{
			name:       "blank text yields first candidate",
			text:       "   ",
			candidates: [2]string{"de", "en"},
			want:       "de",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.text, tt.candidates); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestLinguaDetector_ReusesPairDetector(t *testing.T) {
	d := NewLinguaDetector(quietLogger())
	d.Detect("Hello there, how are you?", [2]string{"en", "fr"})
	d.Detect("Bonjour, comment allez-vous?", [2]string{"en", "fr"})

	n := 0
	d.detectors.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	if n != 1 {
		t.Errorf("built %d pair detectors, want 1", n)
	}
}

func TestLinguaDetector_WarnsOncePerFallbackPair(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewLinguaDetector(logger)

	first, okFirst := d.lookup("fil")
	if okFirst {
		t.Fatalf("fil unexpectedly known as %v", first)
	}
	_, okSecond := d.lookup("en")

	if !d.warnFallback([2]string{"fil", "en"}, okFirst, okSecond) {
		t.Error("first fallback should warn")
	}
	if d.warnFallback([2]string{"fil", "en"}, okFirst, okSecond) {
		t.Error("repeated fallback should not warn again")
	}
	if !d.warnFallback([2]string{"fil", "ja"}, false, true) {
		t.Error("a different pair should warn")
	}

	if got := len(hook.AllEntries()); got != 2 {
		t.Fatalf("got %d log entries, want 2", got)
	}
	entry := hook.AllEntries()[0]
	if entry.Level != logrus.WarnLevel {
		t.Errorf("level = %v, want warn", entry.Level)
	}
	if unknown, _ := entry.Data["unknown"].([]string); len(unknown) != 1 || unknown[0] != "fil" {
		t.Errorf("unknown = %v, want [fil]", entry.Data["unknown"])
	}
}

func TestBase(t *testing.T) {
	tests := map[string]string{
		"pt-BR": "pt",
		"EN":    "en",
		"zh_TW": "zh",
		"fr":    "fr",
	}
	for in, want := range tests {
		if got := base(in); got != want {
			t.Errorf("base(%q) = %q, want %q", in, got, want)
		}
	}
}
