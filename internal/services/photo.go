package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolio-gallery/internal/blob"
	"portfolio-gallery/internal/models"
	"portfolio-gallery/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	imagePrefix      = "images/"
	defaultLocation  = "Unknown"
	maxFilenameChars = 64
)

// Publisher receives gallery events after successful writes
type Publisher interface {
	Publish(event models.Event)
}

// PhotoServiceOptions configures a PhotoService
type PhotoServiceOptions struct {
	// PublicURL prefixes image keys to form the src of a photo
	PublicURL string
	// Timeout bounds every single blob operation
	Timeout time.Duration
	// Concurrency bounds parallel image uploads within one batch
	Concurrency int
	Events      Publisher
}

// PhotoService handles photo-related business logic
type PhotoService struct {
	repo        *repository.PhotoRepository
	store       blob.Store
	publicURL   string
	timeout     time.Duration
	concurrency int
	events      Publisher

	// serializes read-modify-write of the metadata document
	writeMu sync.Mutex
}

// NewPhotoService creates a new photo service
func NewPhotoService(repo *repository.PhotoRepository, store blob.Store, opts PhotoServiceOptions) *PhotoService {
	if opts.PublicURL == "" {
		opts.PublicURL = "/media"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &PhotoService{
		repo:        repo,
		store:       store,
		publicURL:   strings.TrimSuffix(opts.PublicURL, "/"),
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		events:      opts.Events,
	}
}

// List returns the current collection, newest first
func (s *PhotoService) List(ctx context.Context) []models.Photo {
	return s.repo.Load(ctx).Photos
}

// AppendOne stores the image and prepends a new photo to the collection
func (s *PhotoService) AppendOne(ctx context.Context, up models.Upload) (*models.Photo, error) {
	if field := up.Meta.MissingField(); field != "" {
		return nil, &ValidationError{Field: field}
	}
	if len(up.Data) == 0 {
		return nil, &ValidationError{Field: "image"}
	}

	photo, err := s.storeImage(ctx, up)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, func(photos []models.Photo) ([]models.Photo, error) {
		return append([]models.Photo{photo}, photos...), nil
	})
	if err != nil {
		s.discardImage(photo.Src)
		return nil, err
	}

	log.Info().Str("photo_id", photo.ID).Str("title", photo.Title).Msg("Photo created")
	s.publish(models.Event{Type: models.EventPhotosCreated, Photos: []models.Photo{photo}})
	return &photo, nil
}

// AppendBatch uploads all images concurrently and prepends one photo per
// successful upload, in input order, with a single metadata write. Items
// without a title are skipped, and a failed upload does not affect its
// siblings.
func (s *PhotoService) AppendBatch(ctx context.Context, ups []models.Upload) ([]models.Photo, error) {
	var accepted []models.Upload
	for i, up := range ups {
		if strings.TrimSpace(up.Meta.Title) == "" {
			log.Debug().Int("index", i).Str("filename", up.Filename).Msg("Skipping batch item without title")
			continue
		}
		if len(up.Data) == 0 {
			log.Debug().Int("index", i).Str("filename", up.Filename).Msg("Skipping batch item without image data")
			continue
		}
		if strings.TrimSpace(up.Meta.Location) == "" {
			up.Meta.Location = defaultLocation
		}
		if strings.TrimSpace(up.Meta.Date) == "" {
			up.Meta.Date = strconv.Itoa(time.Now().Year())
		}
		accepted = append(accepted, up)
	}
	if len(accepted) == 0 {
		return []models.Photo{}, nil
	}

	results := make([]*models.Photo, len(accepted))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, up := range accepted {
		g.Go(func() error {
			photo, err := s.storeImage(ctx, up)
			if err != nil {
				log.Error().Err(err).Str("filename", up.Filename).Msg("Batch image upload failed")
				return nil
			}
			results[i] = &photo
			return nil
		})
	}
	_ = g.Wait()

	created := make([]models.Photo, 0, len(results))
	for _, p := range results {
		if p != nil {
			created = append(created, *p)
		}
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("all %d image uploads failed", len(accepted))
	}

	err := s.mutate(ctx, func(photos []models.Photo) ([]models.Photo, error) {
		out := make([]models.Photo, 0, len(created)+len(photos))
		out = append(out, created...)
		return append(out, photos...), nil
	})
	if err != nil {
		for _, p := range created {
			s.discardImage(p.Src)
		}
		return nil, err
	}

	log.Info().
		Int("requested", len(ups)).
		Int("created", len(created)).
		Msg("Photo batch created")
	s.publish(models.Event{Type: models.EventPhotosCreated, Photos: created})
	return created, nil
}

// Update replaces the mutable fields of the photo with the given id
func (s *PhotoService) Update(ctx context.Context, id string, meta models.PhotoMeta) (*models.Photo, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id"}
	}
	if field := meta.MissingField(); field != "" {
		return nil, &ValidationError{Field: field}
	}

	var updated models.Photo
	err := s.mutate(ctx, func(photos []models.Photo) ([]models.Photo, error) {
		idx := indexOf(photos, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		photos[idx].Apply(meta)
		updated = photos[idx]
		return photos, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("photo_id", id).Msg("Photo updated")
	s.publish(models.Event{Type: models.EventPhotoUpdated, PhotoID: id, Photos: []models.Photo{updated}})
	return &updated, nil
}

// Remove deletes the photo with the given id. The image blob is deleted
// after the collection is persisted, and failures to do so are only logged.
func (s *PhotoService) Remove(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "id"}
	}

	var removed models.Photo
	err := s.mutate(ctx, func(photos []models.Photo) ([]models.Photo, error) {
		idx := indexOf(photos, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		removed = photos[idx]
		return append(photos[:idx], photos[idx+1:]...), nil
	})
	if err != nil {
		return err
	}

	s.discardImage(removed.Src)
	log.Info().Str("photo_id", id).Msg("Photo deleted")
	s.publish(models.Event{Type: models.EventPhotoDeleted, PhotoID: id})
	return nil
}

// KeyForSrc returns the blob key behind src, or false when the image is not
// hosted by this service
func (s *PhotoService) KeyForSrc(src string) (string, bool) {
	key, ok := strings.CutPrefix(src, s.publicURL+"/")
	if !ok || !strings.HasPrefix(key, imagePrefix) || !blob.ValidKey(key) {
		return "", false
	}
	return key, true
}

// mutate applies fn to a fresh copy of the collection and persists the result
func (s *PhotoService) mutate(ctx context.Context, fn func([]models.Photo) ([]models.Photo, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	coll, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return fmt.Errorf("failed to load photos: %w", err)
	}

	photos := make([]models.Photo, len(coll.Photos))
	copy(photos, coll.Photos)

	photos, err = fn(photos)
	if err != nil {
		return err
	}

	if _, err := s.repo.Save(ctx, coll.Version, photos); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return fmt.Errorf("failed to save photos: %w", err)
	}
	return nil
}

// storeImage uploads the image under a fresh id and returns the new record
func (s *PhotoService) storeImage(ctx context.Context, up models.Upload) (models.Photo, error) {
	id := uuid.New().String()
	key := imagePrefix + id + "-" + sanitizeFilename(up.Filename, up.ContentType)

	contentType := up.ContentType
	if contentType == "" {
		contentType = blob.ContentTypeFor(key)
	}

	putCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Put(putCtx, key, contentType, up.Data); err != nil {
		return models.Photo{}, fmt.Errorf("failed to store image: %w", err)
	}

	photo := models.Photo{ID: id, Src: s.publicURL + "/" + key}
	photo.Apply(up.Meta)
	return photo, nil
}

// discardImage deletes an image blob on a best-effort basis
func (s *PhotoService) discardImage(src string) {
	key, ok := s.KeyForSrc(src)
	if !ok {
		log.Debug().Str("src", src).Msg("Image is not hosted here, leaving it alone")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		log.Error().Err(err).Str("key", key).Msg("Failed to delete image")
	}
}

func (s *PhotoService) publish(event models.Event) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

func indexOf(photos []models.Photo, id string) int {
	for i, p := range photos {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// sanitizeFilename keeps a short, URL-safe version of the original name
func sanitizeFilename(name, contentType string) string {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	clean := strings.Trim(b.String(), ".-")
	if len(clean) > maxFilenameChars {
		clean = clean[len(clean)-maxFilenameChars:]
		clean = strings.TrimLeft(clean, ".-")
	}
	if clean == "" {
		clean = "image"
	}
	if path.Ext(clean) == "" {
		clean += extensionFor(contentType)
	}
	return clean
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
