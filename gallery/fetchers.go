package gallery

import (
	"context"

	"github.com/Sargam-11/photocluster/fetch"
)

// PhotosPageFunc adapts ListPhotos to the pager contract. The page number in
// opts is overridden by the pager's own cursor; the remaining filters apply
// to every page.
func (s *Service) PhotosPageFunc(opts ListPhotosOptions) fetch.PageFunc[Photo] {
	return func(ctx context.Context, page int) (fetch.Page[Photo], error) {
		opts.Page = page
		res, err := s.ListPhotos(ctx, opts)
		if err != nil {
			return fetch.Page[Photo]{}, err
		}
		return fetch.Page[Photo]{Items: res.Photos, Total: res.Total, HasNext: res.HasNext}, nil
	}
}

// PhotosPager returns a pager accumulating the filtered photo listing,
// deduplicated by photo id.
func (s *Service) PhotosPager(opts ListPhotosOptions) *fetch.Pager[Photo] {
	return fetch.NewPager(s.PhotosPageFunc(opts), func(p Photo) string { return p.ID })
}

// PersonPhotosPageFunc adapts PersonPhotos to the pager contract.
func (s *Service) PersonPhotosPageFunc(personID string, perPage int) fetch.PageFunc[Photo] {
	return func(ctx context.Context, page int) (fetch.Page[Photo], error) {
		res, err := s.PersonPhotos(ctx, personID, page, perPage)
		if err != nil {
			return fetch.Page[Photo]{}, err
		}
		return fetch.Page[Photo]{Items: res.Photos, Total: res.Total, HasNext: res.HasNext}, nil
	}
}

// PersonPhotosPager returns a pager accumulating one person's photos,
// deduplicated by photo id.
func (s *Service) PersonPhotosPager(personID string, perPage int) *fetch.Pager[Photo] {
	return fetch.NewPager(s.PersonPhotosPageFunc(personID, perPage), func(p Photo) string { return p.ID })
}

// PersonFetcher returns a fetcher that loads one person keyed by id, for
// detail views whose subject changes as the user navigates.
func (s *Service) PersonFetcher() *fetch.Fetcher[Person] {
	return fetch.NewFetcher(func(ctx context.Context, key string) (Person, error) {
		p, err := s.GetPerson(ctx, key)
		if err != nil {
			return Person{}, err
		}
		return *p, nil
	})
}

// PhotoFetcher returns a fetcher that loads one photo keyed by id.
func (s *Service) PhotoFetcher() *fetch.Fetcher[Photo] {
	return fetch.NewFetcher(func(ctx context.Context, key string) (Photo, error) {
		p, err := s.GetPhoto(ctx, key)
		if err != nil {
			return Photo{}, err
		}
		return *p, nil
	})
}
