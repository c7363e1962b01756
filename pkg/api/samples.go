package api

// LanguageInfo describes a selectable language and its canned sample.
type LanguageInfo struct {
	Value  Language `json:"value"`
	Label  string   `json:"label"`
	Sample string   `json:"sample"`
}

// languages is the fixed table of supported runtimes in display order.
// Entries are copied out, never handed out by reference.
var languages = [...]LanguageInfo{
	{Value: LanguagePython, Label: "Python", Sample: `print("Hello, world!")`},
	{Value: LanguageJavaScript, Label: "JavaScript", Sample: `console.log("Hello, world!");`},
}

// Languages returns the supported languages in display order.
func Languages() []LanguageInfo {
	out := make([]LanguageInfo, len(languages))
	copy(out, languages[:])
	return out
}

// Lookup returns the LanguageInfo for lang.
func Lookup(lang Language) (LanguageInfo, bool) {
	for _, l := range languages {
		if l.Value == lang {
			return l, true
		}
	}
	return LanguageInfo{}, false
}

// Sample returns the canned sample for lang, or "" if lang is unsupported.
func Sample(lang Language) string {
	l, _ := Lookup(lang)
	return l.Sample
}

// Supported reports whether lang is accepted by the remote runner.
func Supported(lang Language) bool {
	_, ok := Lookup(lang)
	return ok
}

// LanguageValues returns the identifiers of all supported languages.
func LanguageValues() []string {
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		out = append(out, string(l.Value))
	}
	return out
}
