// Package gallery provides typed access to the Photo-cluster backend: photo
// and person CRUD, paginated listings with client-side caching, person photo
// lookups and download URL construction. It layers domain calls over the
// request client; transport concerns (retries, timeouts, interceptors) stay
// in the client.
package gallery

import "time"

// Photo is a gallery photo as returned by the backend.
type Photo struct {
	ID              string         `json:"id"`
	OriginalURL     string         `json:"original_url"`
	ThumbnailURL    string         `json:"thumbnail_url"`
	WebURL          string         `json:"web_url"`
	Filename        string         `json:"filename"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	FileSize        int64          `json:"file_size"`
	TakenAt         *time.Time     `json:"taken_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Processed       bool           `json:"processed"`
	ProcessingError string         `json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Persons         []string       `json:"persons"`
}

// PhotoCreate is the payload for registering a new photo.
type PhotoCreate struct {
	OriginalURL  string         `json:"original_url"`
	ThumbnailURL string         `json:"thumbnail_url"`
	WebURL       string         `json:"web_url"`
	Filename     string         `json:"filename"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	FileSize     int64          `json:"file_size"`
	TakenAt      *time.Time     `json:"taken_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// PhotoUpdate is a partial photo update; nil fields are left unchanged.
type PhotoUpdate struct {
	OriginalURL     *string        `json:"original_url,omitempty"`
	ThumbnailURL    *string        `json:"thumbnail_url,omitempty"`
	WebURL          *string        `json:"web_url,omitempty"`
	Filename        *string        `json:"filename,omitempty"`
	Width           *int           `json:"width,omitempty"`
	Height          *int           `json:"height,omitempty"`
	FileSize        *int64         `json:"file_size,omitempty"`
	TakenAt         *time.Time     `json:"taken_at,omitempty"`
	Processed       *bool          `json:"processed,omitempty"`
	ProcessingError *string        `json:"processing_error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Person is a clustered identity with its representative thumbnail.
type Person struct {
	ID                string    `json:"id"`
	ThumbnailURL      string    `json:"thumbnail_url"`
	PhotoCount        int       `json:"photo_count"`
	ClusterConfidence float64   `json:"cluster_confidence"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PersonThumbnail is the compact person shape used on the gallery homepage.
type PersonThumbnail struct {
	ID                string  `json:"id"`
	ThumbnailURL      string  `json:"thumbnail_url"`
	PhotoCount        int     `json:"photo_count"`
	ClusterConfidence float64 `json:"cluster_confidence"`
}

// PersonCreate is the payload for registering a clustered person.
// FaceEmbedding is the 128-dimensional face encoding the clustering pipeline
// produced.
type PersonCreate struct {
	ThumbnailURL      string    `json:"thumbnail_url"`
	PhotoCount        int       `json:"photo_count"`
	ClusterConfidence float64   `json:"cluster_confidence"`
	FaceEmbedding     []float64 `json:"face_embedding"`
}

// PersonUpdate is a partial person update; nil fields are left unchanged.
type PersonUpdate struct {
	ThumbnailURL      *string  `json:"thumbnail_url,omitempty"`
	PhotoCount        *int     `json:"photo_count,omitempty"`
	ClusterConfidence *float64 `json:"cluster_confidence,omitempty"`
}

// PhotosPage is the photo listing envelope.
type PhotosPage struct {
	Photos  []Photo `json:"photos"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
	HasNext bool    `json:"has_next"`
}

// PersonsPage is the person listing envelope.
type PersonsPage struct {
	Persons []PersonThumbnail `json:"persons"`
	Total   int               `json:"total"`
}

// Health is the backend liveness report.
type Health struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// Quality selects which rendition of a photo to download.
type Quality string

const (
	QualityOriginal  Quality = "original"
	QualityWeb       Quality = "web"
	QualityThumbnail Quality = "thumbnail"
)
