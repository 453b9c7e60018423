package whisper

import (
	"strings"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// buildWordStamps aligns API word timings with the transcript text,
// producing the character-position → elapsed-time index used to scrub
// playback from text. It is a pure function so the alignment can be tested
// without the API.
//
// Each word is located by scanning forward from the previous match, which
// keeps repeated words anchored to their own occurrence. A word that cannot
// be found (the API occasionally normalizes punctuation differently than the
// prose text) is anchored at the current scan position rather than dropped,
// so the index stays monotonic.
func buildWordStamps(text string, words []apiWord) []domain.WordStamp {
	if len(words) == 0 {
		return nil
	}

	stamps := make([]domain.WordStamp, 0, len(words))
	pos := 0

	for _, w := range words {
		token := strings.TrimSpace(w.Word)
		if token == "" {
			continue
		}

		offset := pos
		if idx := strings.Index(text[pos:], token); idx >= 0 {
			offset = pos + idx
			pos = offset + len(token)
		}

		stamps = append(stamps, domain.WordStamp{
			Word:       token,
			StartMs:    int64(w.Start * 1000),
			EndMs:      int64(w.End * 1000),
			CharOffset: offset,
		})
	}

	return stamps
}
