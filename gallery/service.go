package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sargam-11/photocluster"
	"github.com/Sargam-11/photocluster/cache"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
)

// Service issues the gallery's domain calls through a request client. With a
// cache configured, list and single-item reads are memoized and mutations
// invalidate the affected keys, mirroring the backend's own cache layout.
type Service struct {
	client   *photocluster.Client
	cache    *cache.Store
	cacheTTL time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithCache memoizes reads in store. Entries live in the volatile backend
// for ttl; a non-positive ttl uses the store's default.
func WithCache(store *cache.Store, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

// NewService wraps client. Without WithCache every read hits the network.
func NewService(client *photocluster.Client, opts ...Option) *Service {
	s := &Service{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPhotosOptions filters the photo listing. Nil booleans defer to the
// server defaults (processed only, any face status).
type ListPhotosOptions struct {
	Page          int
	PerPage       int
	ProcessedOnly *bool
	HasFaces      *bool
}

func (o ListPhotosOptions) normalize() ListPhotosOptions {
	if o.Page <= 0 {
		o.Page = defaultPage
	}
	if o.PerPage <= 0 {
		o.PerPage = defaultPerPage
	}
	return o
}

// ListPersonsOptions filters the person listing. MinPhotos below 1 uses the
// server default of 1.
type ListPersonsOptions struct {
	Page      int
	PerPage   int
	MinPhotos int
}

func (o ListPersonsOptions) normalize() ListPersonsOptions {
	if o.Page <= 0 {
		o.Page = defaultPage
	}
	if o.PerPage <= 0 {
		o.PerPage = defaultPerPage
	}
	if o.MinPhotos < 1 {
		o.MinPhotos = 1
	}
	return o
}

// fetchCached resolves a read through the cache when one is configured.
// Concurrent misses for the same key collapse into one fetch.
func fetchCached[T any](ctx context.Context, s *Service, key string, fetch func(ctx context.Context) (T, error)) (*T, error) {
	if s.cache == nil {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}

	data, err := s.cache.GetOrFetch(ctx, key, cache.Volatile, s.cacheTTL, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &photocluster.Error{
			Type:    photocluster.ErrorTypeParse,
			Message: "failed to decode cached response",
			Cause:   err,
		}
	}
	return &v, nil
}

// ListPhotos returns one page of the photo listing.
func (s *Service) ListPhotos(ctx context.Context, opts ListPhotosOptions) (*PhotosPage, error) {
	opts = opts.normalize()
	return fetchCached(ctx, s, photosListKey(opts), func(ctx context.Context) (PhotosPage, error) {
		query := url.Values{
			"page":     {strconv.Itoa(opts.Page)},
			"per_page": {strconv.Itoa(opts.PerPage)},
		}
		if opts.ProcessedOnly != nil {
			query.Set("processed_only", strconv.FormatBool(*opts.ProcessedOnly))
		}
		if opts.HasFaces != nil {
			query.Set("has_faces", strconv.FormatBool(*opts.HasFaces))
		}

		var page PhotosPage
		err := s.client.DoJSON(ctx, photocluster.RequestDescriptor{
			Method: http.MethodGet,
			Path:   "/api/photos",
			Query:  query,
		}, &page)
		return page, err
	})
}

// GetPhoto returns a single photo by id.
func (s *Service) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	if id == "" {
		return nil, requiredArgError("photo id")
	}
	return fetchCached(ctx, s, "photo:"+id, func(ctx context.Context) (Photo, error) {
		var photo Photo
		err := s.client.Get(ctx, "/api/photos/"+url.PathEscape(id), &photo)
		return photo, err
	})
}

// CreatePhoto registers a new photo and invalidates the cached listings.
func (s *Service) CreatePhoto(ctx context.Context, in PhotoCreate) (*Photo, error) {
	var photo Photo
	if err := s.client.Post(ctx, "/api/photos", in, &photo); err != nil {
		return nil, err
	}
	s.invalidatePhotoLists()
	return &photo, nil
}

// UpdatePhoto applies a partial update and invalidates the photo's cache
// entry along with the listings that may contain it.
func (s *Service) UpdatePhoto(ctx context.Context, id string, in PhotoUpdate) (*Photo, error) {
	if id == "" {
		return nil, requiredArgError("photo id")
	}
	var photo Photo
	if err := s.client.Put(ctx, "/api/photos/"+url.PathEscape(id), in, &photo); err != nil {
		return nil, err
	}
	s.invalidate("photo:" + id)
	s.invalidatePhotoLists()
	return &photo, nil
}

// DeletePhoto removes a photo and its cached entries.
func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	if id == "" {
		return requiredArgError("photo id")
	}
	if err := s.client.Delete(ctx, "/api/photos/"+url.PathEscape(id)); err != nil {
		return err
	}
	s.invalidate("photo:" + id)
	s.invalidatePhotoLists()
	return nil
}

// ListPersons returns one page of clustered persons for the homepage grid.
func (s *Service) ListPersons(ctx context.Context, opts ListPersonsOptions) (*PersonsPage, error) {
	opts = opts.normalize()
	key := fmt.Sprintf("persons:page:%d:per_page:%d:min_photos:%d", opts.Page, opts.PerPage, opts.MinPhotos)
	return fetchCached(ctx, s, key, func(ctx context.Context) (PersonsPage, error) {
		query := url.Values{
			"page":       {strconv.Itoa(opts.Page)},
			"per_page":   {strconv.Itoa(opts.PerPage)},
			"min_photos": {strconv.Itoa(opts.MinPhotos)},
		}

		var page PersonsPage
		err := s.client.DoJSON(ctx, photocluster.RequestDescriptor{
			Method: http.MethodGet,
			Path:   "/api/persons",
			Query:  query,
		}, &page)
		return page, err
	})
}

// GetPerson returns a single person by id.
func (s *Service) GetPerson(ctx context.Context, id string) (*Person, error) {
	if id == "" {
		return nil, requiredArgError("person id")
	}
	return fetchCached(ctx, s, "person:"+id, func(ctx context.Context) (Person, error) {
		var person Person
		err := s.client.Get(ctx, "/api/persons/"+url.PathEscape(id), &person)
		return person, err
	})
}

// CreatePerson registers a clustered person and invalidates the cached
// person listings.
func (s *Service) CreatePerson(ctx context.Context, in PersonCreate) (*Person, error) {
	var person Person
	if err := s.client.Post(ctx, "/api/persons", in, &person); err != nil {
		return nil, err
	}
	s.invalidatePersonLists()
	return &person, nil
}

// UpdatePerson applies a partial update and invalidates the person's cached
// entries.
func (s *Service) UpdatePerson(ctx context.Context, id string, in PersonUpdate) (*Person, error) {
	if id == "" {
		return nil, requiredArgError("person id")
	}
	var person Person
	if err := s.client.Put(ctx, "/api/persons/"+url.PathEscape(id), in, &person); err != nil {
		return nil, err
	}
	s.invalidate("person:" + id)
	s.invalidatePersonLists()
	return &person, nil
}

// DeletePerson removes a person and every cached entry that referenced them.
func (s *Service) DeletePerson(ctx context.Context, id string) error {
	if id == "" {
		return requiredArgError("person id")
	}
	if err := s.client.Delete(ctx, "/api/persons/"+url.PathEscape(id)); err != nil {
		return err
	}
	s.invalidate("person:" + id)
	s.invalidatePersonLists()
	s.invalidatePrefix("person_photos:" + id + ":")
	return nil
}

// PersonPhotos returns one page of the photos containing a person.
func (s *Service) PersonPhotos(ctx context.Context, personID string, page, perPage int) (*PhotosPage, error) {
	if personID == "" {
		return nil, requiredArgError("person id")
	}
	if page <= 0 {
		page = defaultPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	key := fmt.Sprintf("person_photos:%s:page:%d:per_page:%d", personID, page, perPage)
	return fetchCached(ctx, s, key, func(ctx context.Context) (PhotosPage, error) {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}

		var res PhotosPage
		err := s.client.DoJSON(ctx, photocluster.RequestDescriptor{
			Method: http.MethodGet,
			Path:   "/api/persons/" + url.PathEscape(personID) + "/photos",
			Query:  query,
		}, &res)
		return res, err
	})
}

// RefreshPersonPhotoCount asks the backend to recount a person's photos and
// drops the cached entries the recount may change.
func (s *Service) RefreshPersonPhotoCount(ctx context.Context, id string) error {
	if id == "" {
		return requiredArgError("person id")
	}
	if err := s.client.Post(ctx, "/api/persons/"+url.PathEscape(id)+"/update-photo-count", nil, nil); err != nil {
		return err
	}
	s.invalidate("person:" + id)
	s.invalidatePersonLists()
	return nil
}

// SearchPersons queries the person search endpoint. The backend currently
// answers 501 Not Implemented; that error is surfaced unchanged.
func (s *Service) SearchPersons(ctx context.Context, q string) (*PersonsPage, error) {
	if q == "" {
		return nil, requiredArgError("search query")
	}
	var page PersonsPage
	err := s.client.DoJSON(ctx, photocluster.RequestDescriptor{
		Method: http.MethodGet,
		Path:   "/api/persons/search",
		Query:  url.Values{"q": {q}},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// HealthCheck reports backend liveness. Never cached.
func (s *Service) HealthCheck(ctx context.Context) (*Health, error) {
	var health Health
	if err := s.client.Get(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// DownloadURL builds the download link for one photo rendition. An empty
// quality means the original file.
func (s *Service) DownloadURL(photoID string, quality Quality) (string, error) {
	if photoID == "" {
		return "", requiredArgError("photo id")
	}
	if quality == "" {
		quality = QualityOriginal
	}
	if err := validQuality(quality); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/photos/%s/download?quality=%s", s.client.BaseURL(), url.PathEscape(photoID), quality), nil
}

// PersonDownloadURL builds the archive download link for all of a person's
// photos. An empty quality means web-optimized, matching the backend
// default.
func (s *Service) PersonDownloadURL(personID string, quality Quality) (string, error) {
	if personID == "" {
		return "", requiredArgError("person id")
	}
	if quality == "" {
		quality = QualityWeb
	}
	if err := validQuality(quality); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/persons/%s/download?quality=%s", s.client.BaseURL(), url.PathEscape(personID), quality), nil
}

func validQuality(q Quality) error {
	switch q {
	case QualityOriginal, QualityWeb, QualityThumbnail:
		return nil
	default:
		return &photocluster.Error{
			Type:    photocluster.ErrorTypeValidation,
			Message: fmt.Sprintf("invalid quality %q: must be original, web or thumbnail", q),
		}
	}
}

func requiredArgError(name string) error {
	return &photocluster.Error{
		Type:    photocluster.ErrorTypeValidation,
		Message: name + " is required",
	}
}

func photosListKey(opts ListPhotosOptions) string {
	processed := true
	if opts.ProcessedOnly != nil {
		processed = *opts.ProcessedOnly
	}
	hasFaces := "all"
	if opts.HasFaces != nil {
		hasFaces = strconv.FormatBool(*opts.HasFaces)
	}
	return fmt.Sprintf("photos:page:%d:per_page:%d:processed:%t:has_faces:%s", opts.Page, opts.PerPage, processed, hasFaces)
}

func (s *Service) invalidate(key string) {
	if s.cache != nil {
		s.cache.Delete(key, cache.Volatile)
	}
}

func (s *Service) invalidatePrefix(prefix string) {
	if s.cache != nil {
		s.cache.DeletePrefix(prefix, cache.Volatile)
	}
}

// invalidatePhotoLists clears every cached photo listing, including the
// per-person pages that may contain the mutated photo.
func (s *Service) invalidatePhotoLists() {
	s.invalidatePrefix("photos:page:")
	s.invalidatePrefix("person_photos:")
}

func (s *Service) invalidatePersonLists() {
	s.invalidatePrefix("persons:page:")
}
