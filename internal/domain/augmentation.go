package domain

import "time"

// SkipReason identifies why an augmentation was permanently skipped.
type SkipReason string

const (
	// SkipTooShort means the media duration was reliably below the minimum.
	SkipTooShort SkipReason = "too_short"

	// SkipProcessingCrash means the external transform tool crashed on the input.
	SkipProcessingCrash SkipReason = "processing_crash"

	// SkipTooShortTranscript means the transcript fell below the minimum length.
	SkipTooShortTranscript SkipReason = "too_short_transcript"

	// SkipLowQuality means the transcript was dominated by non-speech markers.
	SkipLowQuality SkipReason = "low_quality"

	// SkipInsufficientContent means the summarizer declined to produce prose.
	SkipInsufficientContent SkipReason = "insufficient_content"
)

// WordStamp maps one transcript word to its elapsed playback time and its
// character offset into the transcript, used to scrub playback from text.
type WordStamp struct {
	Word       string `json:"word"`
	StartMs    int64  `json:"start_ms"`
	EndMs      int64  `json:"end_ms"`
	CharOffset int    `json:"char_offset"`
}

// QualityDiagnostics records the quality-gate measurements attached to a
// low_quality skip.
type QualityDiagnostics struct {
	MarkerCount     int     `json:"marker_count"`
	MeaningfulWords int     `json:"meaningful_words"`
	MarkerDensity   float64 `json:"marker_density"`
}

// AugmentationRecord is the terminal outcome of the media pipeline for one
// (token, itemID) pair. Either a success record (transcript + summary) or a
// permanent skip. Once written it is never recomputed; transient failures
// deliberately write no record at all.
type AugmentationRecord struct {
	Token       string              `json:"token"`
	ItemID      string              `json:"item_id"`
	Skipped     bool                `json:"skipped,omitempty"`
	Reason      SkipReason          `json:"reason,omitempty"`
	Transcript  string              `json:"transcript,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Words       []WordStamp         `json:"word_timestamps,omitempty"`
	Diagnostics *QualityDiagnostics `json:"diagnostics,omitempty"`
	DurationSec float64             `json:"duration_seconds,omitempty"`
	ProcessedAt time.Time           `json:"processed_at"`
}

// Terminal reports whether the record ends the pipeline for its item.
// Every persisted record is terminal; the method exists so callers don't
// have to know that convention.
func (r *AugmentationRecord) Terminal() bool {
	return r != nil
}

// NewSkipRecord creates a permanent-skip record.
func NewSkipRecord(token, itemID string, reason SkipReason) *AugmentationRecord {
	return &AugmentationRecord{
		Token:       token,
		ItemID:      itemID,
		Skipped:     true,
		Reason:      reason,
		ProcessedAt: time.Now(),
	}
}

// AugmentationKey builds the record-store key for a (token, itemID) pair.
func AugmentationKey(token, itemID string) string {
	return token + "_" + itemID
}
