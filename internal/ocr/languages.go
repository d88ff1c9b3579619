package ocr

import (
	"fmt"
	"strings"
)

// SupportedLanguages lists the OCR language codes users may choose with /lang.
var SupportedLanguages = []string{
	"eng", "hin", "spa", "fra", "deu", "ita", "por", "rus", "jpn", "chi_sim",
	"ara", "tur", "nld", "pol", "ces", "ell", "kor", "ukr", "ron", "swe",
}

// languageHints maps OCR codes to the BCP-47 tags the Google engines accept as hints.
var languageHints = map[string]string{
	"eng": "en", "hin": "hi", "spa": "es", "fra": "fr", "deu": "de",
	"ita": "it", "por": "pt", "rus": "ru", "jpn": "ja", "chi_sim": "zh",
	"ara": "ar", "tur": "tr", "nld": "nl", "pol": "pl", "ces": "cs",
	"ell": "el", "kor": "ko", "ukr": "uk", "ron": "ro", "swe": "sv",
}

// AutoDetect is the spec covering every supported language.
func AutoDetect() string {
	return strings.Join(SupportedLanguages, "+")
}

// ParseLanguageSpec splits a "+"-joined spec such as "eng+hin" into codes,
// lower-casing them and dropping duplicates. Every code must be supported.
func ParseLanguageSpec(spec string) ([]string, error) {
	var codes []string
	seen := map[string]bool{}
	for _, raw := range strings.Split(spec, "+") {
		code := strings.ToLower(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if _, ok := languageHints[code]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, code)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: empty language spec", ErrUnsupportedLanguage)
	}
	return codes, nil
}

// NormalizeLanguageSpec validates spec and returns its canonical "+"-joined form.
func NormalizeLanguageSpec(spec string) (string, error) {
	codes, err := ParseLanguageSpec(spec)
	if err != nil {
		return "", err
	}
	return strings.Join(codes, "+"), nil
}

// LanguageHints converts a spec into engine hints. An empty spec, or one that
// names every supported language, yields no hints so the engine auto-detects.
func LanguageHints(spec string) ([]string, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	codes, err := ParseLanguageSpec(spec)
	if err != nil {
		return nil, err
	}
	if len(codes) == len(SupportedLanguages) {
		return nil, nil
	}
	hints := make([]string, 0, len(codes))
	for _, code := range codes {
		hints = append(hints, languageHints[code])
	}
	return hints, nil
}
