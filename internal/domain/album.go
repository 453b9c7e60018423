package domain

import "time"

// Token is a canonical (resolved) album token.
type Token string

// String returns the string representation of the token.
func (t Token) String() string {
	return string(t)
}

// Derivative is a single rendition of a photo or video at one resolution.
type Derivative struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Photo is one item of an album. Videos carry a playable MediaURL in
// addition to their still derivatives.
type Photo struct {
	ID          string                `json:"id"`
	Caption     string                `json:"caption,omitempty"`
	IsVideo     bool                  `json:"is_video,omitempty"`
	MediaURL    string                `json:"media_url,omitempty"`
	CreatedAt   time.Time             `json:"created_at,omitempty"`
	Derivatives map[string]Derivative `json:"derivatives"`
}

// AlbumMetadata describes the album itself.
type AlbumMetadata struct {
	Name       string    `json:"name"`
	OwnerName  string    `json:"owner_name,omitempty"`
	ItemCount  int       `json:"item_count"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

// AlbumResult is the payload returned by the album provider.
//
// URLsRewritten tags whether embedded derivative URLs have already been
// rewritten to opaque image references. Records written by earlier store
// formats were persisted post-rewrite; they are migrated on read and must
// bypass re-rewriting.
type AlbumResult struct {
	Metadata      AlbumMetadata `json:"metadata"`
	Photos        []Photo       `json:"photos"`
	URLsRewritten bool          `json:"urls_rewritten,omitempty"`
}

// Videos returns the album items that carry playable media.
func (a *AlbumResult) Videos() []Photo {
	var out []Photo
	for _, p := range a.Photos {
		if p.IsVideo && p.MediaURL != "" {
			out = append(out, p)
		}
	}
	return out
}
