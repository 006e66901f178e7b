package translate

import (
	"fmt"
	"strings"

	"github.com/dasmlab/gemmagate/pkg/language"
)

// buildPrompt renders the instruction sent to chat-style engines.
func buildPrompt(engine EngineType, text, sourceLang, targetLang, mode string) (string, error) {
	source := language.Name(sourceLang)
	target := language.Name(targetLang)

	var b strings.Builder
	switch mode {
	case "", ModeDirect:
		fmt.Fprintf(&b, "You are a professional %s (%s) to %s (%s) translator. ", source, sourceLang, target, targetLang)
		b.WriteString("Produce only the translation, without any additional explanations or commentary. ")
		fmt.Fprintf(&b, "Please translate the following %s text into %s:\n\n", source, target)
	case ModeExplain:
		fmt.Fprintf(&b, "You are a professional %s (%s) to %s (%s) translator. ", source, sourceLang, target, targetLang)
		fmt.Fprintf(&b, "Translate the following %s text into %s. ", source, target)
		b.WriteString("After the translation, add a blank line and up to three short notes on idioms, ambiguity or word choice.\n\n")
	default:
		return "", engineErr(engine, "translate", fmt.Errorf("%w: %q", ErrUnsupportedMode, mode))
	}
	b.WriteString(text)
	return b.String(), nil
}
