package augment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/albumproxy/internal/config"
	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/store"
	"github.com/iconidentify/albumproxy/pkg/grok"
	"github.com/iconidentify/albumproxy/pkg/whisper"
)

// MediaDownloader streams a media file to a local path.
type MediaDownloader interface {
	DownloadToFile(ctx context.Context, url, dst string) error
}

// AudioExtractor probes media duration and extracts a mono audio track.
type AudioExtractor interface {
	ProbeDuration(ctx context.Context, input string) (seconds float64, known bool, err error)
	ExtractAudio(ctx context.Context, videoPath, outputPath string) error
}

// Service runs the full augmentation pipeline for one item: duration gate,
// download, audio extraction, transcription, quality gate, summarization.
// Permanent outcomes (success or skip) are written to the record store;
// transient failures return an error without writing anything so a later
// attempt starts clean.
type Service struct {
	cfg        config.AugmentConfig
	records    *store.Store[domain.AugmentationRecord]
	downloader MediaDownloader
	extractor  AudioExtractor
	whisper    whisper.Client
	grok       grok.Client
	scratchDir string
	logger     *slog.Logger
}

// NewService creates the pipeline service. scratchDir holds per-job temp
// files and must be writable.
func NewService(
	cfg config.AugmentConfig,
	records *store.Store[domain.AugmentationRecord],
	downloader MediaDownloader,
	extractor AudioExtractor,
	whisperClient whisper.Client,
	grokClient grok.Client,
	scratchDir string,
	logger *slog.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		records:    records,
		downloader: downloader,
		extractor:  extractor,
		whisper:    whisperClient,
		grok:       grokClient,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

// Lookup returns the persisted record for an item, if any.
func (s *Service) Lookup(token, itemID string) (*domain.AugmentationRecord, bool) {
	rec, ok := s.records.Read(store.SanitizeKey(domain.AugmentationKey(token, itemID)))
	if !ok {
		return nil, false
	}
	return &rec.Value, true
}

// Process runs the pipeline for one item. If a record already exists it is
// returned as-is; the pipeline never recomputes a terminal outcome.
func (s *Service) Process(ctx context.Context, token, itemID, mediaURL string) (*domain.AugmentationRecord, error) {
	if rec, ok := s.Lookup(token, itemID); ok {
		return rec, nil
	}

	log := s.logger.With("token", token, "item_id", itemID)
	log.Info("augmentation started")

	videoPath := filepath.Join(s.scratchDir, "aug-"+uuid.New().String()+".mp4")
	audioPath := videoPath + ".wav"
	defer func() {
		os.Remove(videoPath)
		os.Remove(audioPath)
	}()

	dlCtx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	err := s.downloader.DownloadToFile(dlCtx, mediaURL, videoPath)
	cancel()
	if err != nil {
		return nil, domain.NewItemError(token, itemID, "download media", err)
	}

	// An unreadable duration is not a reason to refuse the item; the probe
	// only gates when it reliably reports a short clip.
	seconds, known, err := s.extractor.ProbeDuration(ctx, videoPath)
	if err != nil {
		log.Warn("duration probe failed, continuing", "error", err)
	}
	if known && seconds < s.cfg.MinDurationSec {
		rec := domain.NewSkipRecord(token, itemID, domain.SkipTooShort)
		rec.DurationSec = seconds
		return s.persist(rec, log)
	}

	exCtx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	err = s.extractor.ExtractAudio(exCtx, videoPath, audioPath)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrProcessingCrash) {
			rec := domain.NewSkipRecord(token, itemID, domain.SkipProcessingCrash)
			rec.DurationSec = seconds
			return s.persist(rec, log)
		}
		return nil, domain.NewItemError(token, itemID, "extract audio", err)
	}

	transcript, err := s.whisper.TranscribeFile(ctx, audioPath)
	if err != nil {
		return nil, domain.NewItemError(token, itemID, "transcribe", err)
	}

	if len(transcript.Text) < s.cfg.MinTranscriptChars {
		rec := domain.NewSkipRecord(token, itemID, domain.SkipTooShortTranscript)
		rec.DurationSec = seconds
		return s.persist(rec, log)
	}

	diag := AnalyzeTranscript(transcript.Text)
	if diag.MarkerDensity > s.cfg.MarkerDensity || diag.MeaningfulWords < s.cfg.MinMeaningfulWords {
		rec := domain.NewSkipRecord(token, itemID, domain.SkipLowQuality)
		rec.Diagnostics = &diag
		rec.DurationSec = seconds
		return s.persist(rec, log)
	}

	summary, err := s.grok.Summarize(ctx, grok.SummaryRequest{
		Transcript:      transcript.Text,
		MeaningfulWords: diag.MeaningfulWords,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientContent) {
			rec := domain.NewSkipRecord(token, itemID, domain.SkipInsufficientContent)
			rec.DurationSec = seconds
			return s.persist(rec, log)
		}
		return nil, domain.NewItemError(token, itemID, "summarize", err)
	}

	rec := &domain.AugmentationRecord{
		Token:       token,
		ItemID:      itemID,
		Transcript:  transcript.Text,
		Summary:     summary,
		Words:       transcript.Words,
		DurationSec: seconds,
		ProcessedAt: time.Now(),
	}
	return s.persist(rec, log)
}

func (s *Service) persist(rec *domain.AugmentationRecord, log *slog.Logger) (*domain.AugmentationRecord, error) {
	key := store.SanitizeKey(domain.AugmentationKey(rec.Token, rec.ItemID))
	if err := s.records.Write(key, *rec); err != nil {
		return nil, fmt.Errorf("write augmentation record: %w", err)
	}
	if rec.Skipped {
		log.Info("augmentation skipped", "reason", rec.Reason)
	} else {
		log.Info("augmentation completed", "transcript_chars", len(rec.Transcript))
	}
	return rec, nil
}
