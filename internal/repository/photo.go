package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"portfolio-gallery/internal/blob"
	"portfolio-gallery/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const metadataPrefix = "metadata/photos-"

// ErrVersionConflict is returned when the newest metadata version differs
// from the one the caller read before writing
var ErrVersionConflict = errors.New("metadata version conflict")

// ErrInvalidDocument is returned when a metadata version cannot be decoded
// or does not match the collection schema
var ErrInvalidDocument = errors.New("invalid metadata document")

// Collection is one resolved version of the metadata document
type Collection struct {
	// Version is the blob key of the document, empty when none exists yet
	Version string
	Photos  []models.Photo
}

// PhotoRepository persists the photo collection as a versioned JSON
// document in a blob store. Writes create a new version before older
// ones are reclaimed, and reads resolve the most recently written one.
type PhotoRepository struct {
	store   blob.Store
	timeout time.Duration

	mu       sync.RWMutex
	lastGood *Collection
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(store blob.Store, timeout time.Duration) *PhotoRepository {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PhotoRepository{store: store, timeout: timeout}
}

// Load returns the current collection. It never fails: a missing or invalid
// document yields an empty collection, and a store failure falls back to
// the last collection read successfully by this process.
func (r *PhotoRepository) Load(ctx context.Context) Collection {
	coll, err := r.LoadStrict(ctx)
	if errors.Is(err, ErrInvalidDocument) {
		log.Warn().Err(err).Msg("Photo metadata is invalid, serving empty collection")
		return Collection{Photos: []models.Photo{}}
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load photo metadata, serving fallback collection")
		return r.fallback()
	}
	return coll
}

// LoadStrict returns the current collection or the reason it could not be read
func (r *PhotoRepository) LoadStrict(ctx context.Context) (Collection, error) {
	versions, err := r.versions(ctx)
	if err != nil {
		return Collection{}, err
	}
	if len(versions) == 0 {
		coll := Collection{Photos: []models.Photo{}}
		r.remember(coll)
		return coll, nil
	}

	latest := versions[len(versions)-1].Key
	photos, err := r.read(ctx, latest)
	if err != nil {
		return Collection{}, fmt.Errorf("version %s: %w", latest, err)
	}

	coll := Collection{Version: latest, Photos: photos}
	r.remember(coll)
	return coll, nil
}

// Save writes photos as a new version, provided the newest stored version
// is still expectedVersion, then reclaims the versions seen before the write.
// It returns the key of the written version.
func (r *PhotoRepository) Save(ctx context.Context, expectedVersion string, photos []models.Photo) (string, error) {
	if photos == nil {
		photos = []models.Photo{}
	}
	if err := models.ValidateCollection(photos); err != nil {
		return "", fmt.Errorf("refusing to write invalid collection: %w", err)
	}

	previous, err := r.versions(ctx)
	if err != nil {
		return "", err
	}
	current := ""
	if len(previous) > 0 {
		current = previous[len(previous)-1].Key
	}
	if current != expectedVersion {
		return "", fmt.Errorf("expected %q, found %q: %w", expectedVersion, current, ErrVersionConflict)
	}

	data, err := json.MarshalIndent(photos, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode photos: %w", err)
	}

	key := newVersionKey()
	putCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.store.Put(putCtx, key, "application/json", data); err != nil {
		return "", fmt.Errorf("failed to write metadata version: %w", err)
	}
	r.remember(Collection{Version: key, Photos: photos})

	r.reclaim(ctx, previous)
	return key, nil
}

// Prune keeps the newest readable metadata version and deletes every other
// one, returning the number of versions removed. Unreadable versions newer
// than the kept one are deleted too, which rolls the collection back to
// the last valid document.
func (r *PhotoRepository) Prune(ctx context.Context) (int, error) {
	versions, err := r.versions(ctx)
	if err != nil {
		return 0, err
	}
	if len(versions) <= 1 {
		return 0, nil
	}

	keep := -1
	for i := len(versions) - 1; i >= 0; i-- {
		if _, err := r.read(ctx, versions[i].Key); err != nil {
			log.Warn().Err(err).Str("version", versions[i].Key).Msg("Skipping unreadable metadata version")
			continue
		}
		keep = i
		break
	}
	if keep < 0 {
		return 0, fmt.Errorf("no readable metadata version among %d", len(versions))
	}

	stale := make([]blob.ObjectInfo, 0, len(versions)-1)
	stale = append(stale, versions[:keep]...)
	stale = append(stale, versions[keep+1:]...)
	return r.reclaim(ctx, stale), nil
}

// reclaim deletes stale versions on a best-effort basis
func (r *PhotoRepository) reclaim(ctx context.Context, stale []blob.ObjectInfo) int {
	removed := 0
	for _, v := range stale {
		delCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.store.Delete(delCtx, v.Key)
		cancel()
		if err != nil && !errors.Is(err, blob.ErrNotFound) {
			log.Warn().Err(err).Str("version", v.Key).Msg("Failed to reclaim metadata version")
			continue
		}
		removed++
	}
	return removed
}

// versions lists metadata versions oldest first
func (r *PhotoRepository) versions(ctx context.Context) ([]blob.ObjectInfo, error) {
	listCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	infos, err := r.store.List(listCtx, metadataPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata versions: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].ModTime.Equal(infos[j].ModTime) {
			return infos[i].ModTime.Before(infos[j].ModTime)
		}
		return infos[i].Key < infos[j].Key
	})
	return infos, nil
}

func (r *PhotoRepository) read(ctx context.Context, key string) ([]models.Photo, error) {
	getCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, _, err := r.store.Get(getCtx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var photos []models.Photo
	if err := json.Unmarshal(data, &photos); err != nil {
		return nil, fmt.Errorf("%w: failed to decode: %v", ErrInvalidDocument, err)
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	if err := models.ValidateCollection(photos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return photos, nil
}

func (r *PhotoRepository) remember(coll Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastGood = &Collection{Version: coll.Version, Photos: clonePhotos(coll.Photos)}
}

func (r *PhotoRepository) fallback() Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastGood == nil {
		return Collection{Photos: []models.Photo{}}
	}
	return Collection{Version: r.lastGood.Version, Photos: clonePhotos(r.lastGood.Photos)}
}

// newVersionKey sorts by write time, the uuid suffix keeps concurrent writers apart
func newVersionKey() string {
	return fmt.Sprintf("%s%020d-%s.json", metadataPrefix, time.Now().UnixNano(), uuid.New().String())
}

func clonePhotos(photos []models.Photo) []models.Photo {
	out := make([]models.Photo, len(photos))
	copy(out, photos)
	return out
}
