package provider

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageName returns the English name for a language code, used in prompt
// templates. "auto" and unparseable codes yield a neutral phrase.
// Example: "es" -> "Spanish".
func LanguageName(code string) string {
	if code == "" || code == LanguageAuto {
		return "same as transcription"
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}

// LanguageLabel returns a menu label for a language code.
// Example: "es" -> "Spanish (es)", "auto" -> "Auto-detect".
func LanguageLabel(code string) string {
	if code == LanguageAuto {
		return "Auto-detect"
	}
	if code == "" {
		return ""
	}
	name := LanguageName(code)
	if strings.EqualFold(name, code) {
		return fmt.Sprintf("language '%s'", code)
	}
	return fmt.Sprintf("%s (%s)", name, code)
}
