package domain

import "strings"

// LanguageAuto asks the transcription backend to detect the language.
const LanguageAuto = "auto"

var supportedLanguages = map[string]string{
	"auto": "Auto-detect",
	"ru":   "Russian",
	"en":   "English",
	"zh":   "Chinese",
	"es":   "Spanish",
	"ar":   "Arabic",
	"pt":   "Portuguese",
	"ja":   "Japanese",
	"de":   "German",
	"fr":   "French",
	"ko":   "Korean",
	"it":   "Italian",
	"tr":   "Turkish",
	"hi":   "Hindi",
	"pl":   "Polish",
	"nl":   "Dutch",
}

// IsSupportedLanguage reports whether code is a known language code or "auto".
func IsSupportedLanguage(code string) bool {
	_, ok := supportedLanguages[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// NormalizeLanguage maps a language hint to the code passed to a
// transcription backend. Empty, "auto" and unsupported hints all yield
// the empty string, which means auto-detect.
func NormalizeLanguage(hint string) string {
	code := strings.ToLower(strings.TrimSpace(hint))
	if code == LanguageAuto || !IsSupportedLanguage(code) {
		return ""
	}
	return code
}

// LanguageName returns the English name of a supported code, or "" if unknown.
func LanguageName(code string) string {
	return supportedLanguages[strings.ToLower(strings.TrimSpace(code))]
}

// MediaKind identifies the kind of recording a work item was created from.
type MediaKind string

// Supported media kinds.
const (
	MediaKindVoice     MediaKind = "voice"
	MediaKindAudio     MediaKind = "audio"
	MediaKindVideoNote MediaKind = "video_note"
)

// IsValid reports whether k is a supported media kind.
func (k MediaKind) IsValid() bool {
	switch k {
	case MediaKindVoice, MediaKindAudio, MediaKindVideoNote:
		return true
	default:
		return false
	}
}

// MaxMediaBytes is the largest recording accepted for download.
const MaxMediaBytes = 20 * 1024 * 1024
