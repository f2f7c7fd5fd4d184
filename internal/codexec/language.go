package codexec

import (
	"strings"
)

// Language is the source language sent to the execution service.
type Language string

const (
	LanguageJava    Language = "java"
	LanguagePython  Language = "python"
	LanguageCPP     Language = "cpp"
	LanguageC       Language = "c"
	LanguageUnknown Language = "unknown"
)

// DetectLanguage resolves a language from a subject name by
// case-insensitive substring match, in priority order
// java → python → c++/cpp → c. A subject matching nothing yields
// LanguageUnknown, which is surfaced as-is: the execution service is
// expected to reject it rather than the engine silently guessing a
// default compiler.
func DetectLanguage(subject string) Language {
	s := strings.ToLower(subject)
	switch {
	case strings.Contains(s, "java"):
		return LanguageJava
	case strings.Contains(s, "python"):
		return LanguagePython
	case strings.Contains(s, "c++"), strings.Contains(s, "cpp"):
		return LanguageCPP
	case strings.Contains(s, "c"):
		return LanguageC
	default:
		return LanguageUnknown
	}
}
