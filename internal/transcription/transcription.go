package transcription

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
)

// ErrTranscription is returned when audio could not be transcribed: the
// backend failed to start, the input was empty or the backend call failed.
var ErrTranscription = errors.New("transcription failed")

// ProgressFunc receives a completion percentage in [0,100].
type ProgressFunc func(percent int)

// Options controls a single transcription.
type Options struct {
	// Language is an ISO 639-1 code or "auto". Unsupported codes fall back
	// to auto-detection.
	Language string
	// OnProgress is called with non-decreasing percentages. Optional.
	OnProgress ProgressFunc
}

// Transcriber turns recorded speech into text.
//
// The returned text may be empty or whitespace-only when nothing was
// recognised; callers decide what that means.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts Options) (string, error)
}

// Segment is one recognised span of speech. Start and End are seconds.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// JoinSegments orders segments by start time and joins their trimmed texts
// with single spaces. Blank segments are skipped.
func JoinSegments(segments []Segment) string {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	texts := lo.FilterMap(ordered, func(s Segment, _ int) (string, bool) {
		t := strings.TrimSpace(s.Text)
		return t, t != ""
	})
	return strings.Join(texts, " ")
}

// Language returns the code a backend should constrain decoding to, or ""
// for auto-detection.
func Language(opts Options) string {
	return domain.NormalizeLanguage(opts.Language)
}
