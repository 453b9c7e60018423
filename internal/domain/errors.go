package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidToken is returned when an album token is missing or malformed.
	ErrInvalidToken = errors.New("invalid album token")

	// ErrAlbumNotFound is returned when an album cannot be fetched or found in cache.
	ErrAlbumNotFound = errors.New("album not found")

	// ErrMappingNotFound is returned when a secure reference does not resolve.
	ErrMappingNotFound = errors.New("secure reference not found")

	// ErrDerivativeNotFound is returned when no derivative exists and no mapping resolves.
	ErrDerivativeNotFound = errors.New("image derivative not found")

	// ErrURLExpired is returned when a signed upstream URL has expired.
	ErrURLExpired = errors.New("upstream URL has expired")

	// ErrRateLimited is returned when rate limited by the upstream provider.
	ErrRateLimited = errors.New("rate limited")

	// ErrDownloadTimeout is returned when a media download times out.
	ErrDownloadTimeout = errors.New("media download timed out")

	// ErrExtractionTimeout is returned when audio extraction exceeds its
	// deadline and the transform process is terminated.
	ErrExtractionTimeout = errors.New("audio extraction timed out")

	// ErrProcessingCrash is returned when the external transform tool crashes.
	// Unlike ErrURLExpired this is terminal: a crash indicates a structurally
	// bad input file, not a transient condition.
	ErrProcessingCrash = errors.New("media processing tool crashed")

	// ErrInsufficientContent is returned when the summarization collaborator
	// declines to produce prose for a transcript.
	ErrInsufficientContent = errors.New("insufficient content to summarize")

	// ErrAugmentationNotFound is returned when no augmentation record exists
	// for an album item and none can be scheduled.
	ErrAugmentationNotFound = errors.New("augmentation record not found")

	// ErrAugmentationPending is returned when an item has no terminal record
	// yet but a pipeline job is queued or running for it.
	ErrAugmentationPending = errors.New("augmentation in progress")

	// ErrQueueClosed is returned when enqueuing on a stopped queue.
	ErrQueueClosed = errors.New("augmentation queue closed")
)

// IsTransient reports whether err is a recoverable upstream condition that
// must not be cached as failure. Transient errors leave no record on disk so
// the next trigger retries the full pipeline.
func IsTransient(err error) bool {
	return errors.Is(err, ErrURLExpired) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrDownloadTimeout) ||
		errors.Is(err, ErrExtractionTimeout)
}

// ItemError wraps an error with album item context.
type ItemError struct {
	Token  string
	ItemID string
	Op     string
	Err    error
}

func (e *ItemError) Error() string {
	if e.ItemID != "" {
		return e.Op + " [" + e.Token + "/" + e.ItemID + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// NewItemError creates a new ItemError.
func NewItemError(token, itemID, op string, err error) *ItemError {
	return &ItemError{
		Token:  token,
		ItemID: itemID,
		Op:     op,
		Err:    err,
	}
}
