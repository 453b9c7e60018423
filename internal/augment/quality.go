package augment

import (
	"regexp"
	"strings"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// markerPattern matches parenthetical or bracketed non-speech annotations
// the transcription engine emits, e.g. "(background music)", "[applause]".
var markerPattern = regexp.MustCompile(`[(\[][^)\]]*[)\]]`)

// markerKeywords mark an annotation as a non-speech cue. An annotation with
// none of these is left in place and counted as ordinary text.
var markerKeywords = []string{
	"music", "sound", "noise", "ambient", "applause", "laugh",
	"silence", "inaudible", "static", "wind", "humming", "chatter",
}

// AnalyzeTranscript measures how much of a transcript is actual speech. It
// returns the count of non-speech markers and the count of meaningful tokens
// (longer than two characters, punctuation stripped) remaining after marker
// text is removed. Pure function so the gate can be tested without audio.
func AnalyzeTranscript(text string) domain.QualityDiagnostics {
	markers := 0
	cleaned := markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		inner := strings.ToLower(strings.Trim(m, "()[]"))
		for _, kw := range markerKeywords {
			if strings.Contains(inner, kw) {
				markers++
				return " "
			}
		}
		return m
	})

	meaningful := 0
	for _, tok := range strings.Fields(cleaned) {
		tok = strings.TrimFunc(tok, isPunct)
		if len(tok) > 2 {
			meaningful++
		}
	}

	return domain.QualityDiagnostics{
		MarkerCount:     markers,
		MeaningfulWords: meaningful,
		MarkerDensity:   density(markers, meaningful),
	}
}

// density is the share of markers among markers plus meaningful tokens.
func density(markers, meaningful int) float64 {
	total := markers + meaningful
	if total == 0 {
		return 0
	}
	return float64(markers) / float64(total)
}

func isPunct(r rune) bool {
	return strings.ContainsRune(`.,!?;:"'()[]{}<>-_/\`+"`", r)
}
