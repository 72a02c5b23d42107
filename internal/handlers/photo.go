package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"portfolio-gallery/internal/models"
	"portfolio-gallery/internal/services"

	"github.com/rs/zerolog/log"
)

// Upload modes of POST /api/photos, chosen by the client in the "mode" field
const (
	UploadModeSingle = "single"
	UploadModeBatch  = "batch"
)

const defaultMaxUploadBytes = 64 << 20

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// WebP is detected separately because net/http does not sniff it.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// PhotoHandler handles photo-related HTTP requests
type PhotoHandler struct {
	photoService   *services.PhotoService
	maxUploadBytes int64
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService, maxUploadBytes int64) *PhotoHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &PhotoHandler{
		photoService:   photoService,
		maxUploadBytes: maxUploadBytes,
	}
}

// UpdatePhotoRequest represents the request body for updating a photo
type UpdatePhotoRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// DeletePhotoResponse confirms a deletion
type DeletePhotoResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// GetPhotos handles GET /api/photos
func (h *PhotoHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	photos := h.photoService.List(r.Context())

	noStore(w)
	respondJSON(w, http.StatusOK, photos)
}

// CreatePhoto handles POST /api/photos
func (h *PhotoHandler) CreatePhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	switch mode := r.FormValue("mode"); mode {
	case "", UploadModeSingle:
		h.createSingle(w, r)
	case UploadModeBatch:
		h.createBatch(w, r)
	default:
		respondError(w, fmt.Sprintf("Unknown upload mode %q", mode), http.StatusBadRequest)
	}
}

func (h *PhotoHandler) createSingle(w http.ResponseWriter, r *http.Request) {
	files := r.MultipartForm.File["image"]
	meta := models.PhotoMeta{
		Title:       r.FormValue("title"),
		Location:    r.FormValue("location"),
		Date:        r.FormValue("date"),
		Description: r.FormValue("description"),
	}
	if len(files) == 0 || meta.MissingField() != "" {
		respondError(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	up, err := readUpload(files[0], meta)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	photo, err := h.photoService.AppendOne(r.Context(), up)
	if err != nil {
		log.Error().Err(err).Str("filename", up.Filename).Msg("Failed to create photo")
		respondServiceError(w, err, "Failed to create photo")
		return
	}

	respondJSON(w, http.StatusCreated, photo)
}

func (h *PhotoHandler) createBatch(w http.ResponseWriter, r *http.Request) {
	form := r.MultipartForm
	files := form.File["images"]
	titles := form.Value["titles"]
	if len(files) == 0 {
		respondError(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if len(titles) != len(files) {
		respondError(w, "titles must have one entry per image", http.StatusBadRequest)
		return
	}
	for _, field := range []string{"locations", "dates", "descriptions"} {
		if n := len(form.Value[field]); n != 0 && n != len(files) {
			respondError(w, field+" must have one entry per image", http.StatusBadRequest)
			return
		}
	}

	ups := make([]models.Upload, 0, len(files))
	for i, fh := range files {
		meta := models.PhotoMeta{
			Title:       titles[i],
			Location:    valueAt(form.Value["locations"], i),
			Date:        valueAt(form.Value["dates"], i),
			Description: valueAt(form.Value["descriptions"], i),
		}
		up, err := readUpload(fh, meta)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Str("filename", fh.Filename).Msg("Skipping batch item")
			continue
		}
		ups = append(ups, up)
	}

	photos, err := h.photoService.AppendBatch(r.Context(), ups)
	if err != nil {
		log.Error().Err(err).Int("items", len(files)).Msg("Failed to create photo batch")
		respondServiceError(w, err, "Failed to create photos")
		return
	}

	respondJSON(w, http.StatusCreated, photos)
}

// UpdatePhoto handles PUT /api/photos
func (h *PhotoHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	var req UpdatePhotoRequest
	if !decodeJSON(w, r, &req, "Invalid request body") {
		return
	}

	meta := models.PhotoMeta{
		Title:       req.Title,
		Location:    req.Location,
		Date:        req.Date,
		Description: req.Description,
	}
	if req.ID == "" || meta.MissingField() != "" {
		respondError(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	photo, err := h.photoService.Update(r.Context(), req.ID, meta)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			log.Error().Err(err).Str("photo_id", req.ID).Msg("Failed to update photo")
		}
		respondServiceError(w, err, "Failed to update photo")
		return
	}

	respondJSON(w, http.StatusOK, photo)
}

// DeletePhoto handles DELETE /api/photos?id=
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, "Missing photo ID", http.StatusBadRequest)
		return
	}

	if err := h.photoService.Remove(r.Context(), id); err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			log.Error().Err(err).Str("photo_id", id).Msg("Failed to delete photo")
		}
		respondServiceError(w, err, "Failed to delete photo")
		return
	}

	respondJSON(w, http.StatusOK, DeletePhotoResponse{Success: true, ID: id})
}

// readUpload reads a multipart file and checks that it is an image
func readUpload(fh *multipart.FileHeader, meta models.PhotoMeta) (models.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Upload{}, fmt.Errorf("failed to read image")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.Upload{}, fmt.Errorf("failed to read image")
	}

	contentType, ok := allowedImageMIME(data)
	if !ok {
		return models.Upload{}, fmt.Errorf("unsupported image format")
	}

	return models.Upload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        data,
		Meta:        meta,
	}, nil
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

func valueAt(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
