package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portfolio-gallery/internal/blob"
	"portfolio-gallery/internal/middleware"
	"portfolio-gallery/internal/models"
	"portfolio-gallery/internal/repository"
	"portfolio-gallery/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "trail-secret"

var (
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngBytes  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
)

type testServer struct {
	handler http.Handler
	store   *blob.MemoryStore
}

func newTestServer(t *testing.T, adminKey string) *testServer {
	t.Helper()
	store := blob.NewMemoryStore()
	hub := services.NewEventHub()
	photoService := services.NewPhotoService(
		repository.NewPhotoRepository(store, time.Second),
		store,
		services.PhotoServiceOptions{PublicURL: "/media", Timeout: time.Second, Events: hub},
	)
	return &testServer{
		handler: NewRouter(RouterDeps{
			PhotoService: photoService,
			AuthService:  services.NewAuthService(adminKey, time.Hour),
			EventHub:     hub,
			Store:        store,
		}),
		store: store,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type part struct {
	field, filename string
	data            []byte
}

func multipartRequest(t *testing.T, fields map[string][]string, files []part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(name, v))
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func singleUpload(t *testing.T, title string) *http.Request {
	req := multipartRequest(t, map[string][]string{
		"title":       {title},
		"location":    {"Coast"},
		"date":        {"2024"},
		"description": {"d"},
	}, []part{{"image", "sunset.jpg", jpegBytes}})
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func listPhotos(t *testing.T, s *testServer) []models.Photo {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[[]models.Photo](t, rec)
}

func TestGetPhotosEmpty(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestCreateSinglePhoto(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	rec := s.do(singleUpload(t, "Sunset"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[models.Photo](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.True(t, strings.HasPrefix(created.Src, "/media/images/"))
	assert.Equal(t, "Sunset", created.Title)

	photos := listPhotos(t, s)
	require.Len(t, photos, 1)
	assert.Equal(t, created, photos[0])

	img := s.do(httptest.NewRequest(http.MethodGet, created.Src, nil))
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/jpeg", img.Header().Get("Content-Type"))
	assert.Equal(t, jpegBytes, img.Body.Bytes())
}

func TestCreatePhotoRejections(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	tests := []struct {
		label   string
		req     func() *http.Request
		expCode int
	}{
		{
			label: "no credential",
			req: func() *http.Request {
				req := singleUpload(t, "Sunset")
				req.Header.Del(middleware.AdminKeyHeader)
				return req
			},
			expCode: http.StatusUnauthorized,
		},
		{
			label: "wrong credential",
			req: func() *http.Request {
				req := singleUpload(t, "Sunset")
				req.Header.Set(middleware.AdminKeyHeader, "guess")
				return req
			},
			expCode: http.StatusUnauthorized,
		},
		{
			label:   "missing title",
			req:     func() *http.Request { return singleUpload(t, "") },
			expCode: http.StatusBadRequest,
		},
		{
			label: "missing image",
			req: func() *http.Request {
				req := multipartRequest(t, map[string][]string{
					"title": {"a"}, "location": {"b"}, "date": {"c"},
				}, nil)
				req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
				return req
			},
			expCode: http.StatusBadRequest,
		},
		{
			label: "not an image",
			req: func() *http.Request {
				req := multipartRequest(t, map[string][]string{
					"title": {"a"}, "location": {"b"}, "date": {"c"},
				}, []part{{"image", "doc.jpg", []byte("%PDF-1.4 malicious")}})
				req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
				return req
			},
			expCode: http.StatusBadRequest,
		},
		{
			label: "unknown mode",
			req: func() *http.Request {
				req := multipartRequest(t, map[string][]string{"mode": {"bulk"}}, nil)
				req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
				return req
			},
			expCode: http.StatusBadRequest,
		},
		{
			label: "not multipart",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader(`{}`))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
				return req
			},
			expCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			rec := s.do(tt.req())
			assert.Equal(t, tt.expCode, rec.Code, rec.Body.String())
		})
	}

	assert.Zero(t, s.store.Len())
}

func TestCreateBatch(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	req := multipartRequest(t, map[string][]string{
		"mode":         {UploadModeBatch},
		"titles":       {"One", "", "Three"},
		"locations":    {"Coast", "Hills", ""},
		"dates":        {"2024", "2023", "2022"},
		"descriptions": {"", "", "third"},
	}, []part{
		{"images", "1.jpg", jpegBytes},
		{"images", "2.jpg", jpegBytes},
		{"images", "3.png", pngBytes},
	})
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)

	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[[]models.Photo](t, rec)
	require.Len(t, created, 2)
	assert.Equal(t, "One", created[0].Title)
	assert.Equal(t, "Three", created[1].Title)
	assert.Equal(t, "Unknown", created[1].Location)
	assert.Equal(t, "third", created[1].Description)

	assert.Equal(t, created, listPhotos(t, s))
}

func TestCreateBatchMismatchedArrays(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	req := multipartRequest(t, map[string][]string{
		"mode":   {UploadModeBatch},
		"titles": {"One"},
	}, []part{
		{"images", "1.jpg", jpegBytes},
		{"images", "2.jpg", jpegBytes},
	})
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)

	rec := s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, listPhotos(t, s))
}

func updateRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/api/photos", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	return req
}

func TestUpdatePhoto(t *testing.T) {
	s := newTestServer(t, testAdminKey)
	created := decode[models.Photo](t, s.do(singleUpload(t, "Sunset")))

	rec := s.do(updateRequest(t, UpdatePhotoRequest{
		ID: created.ID, Title: "Sunrise", Location: "Coast", Date: "2024", Description: "",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[models.Photo](t, rec)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Src, updated.Src)
	assert.Equal(t, "Sunrise", updated.Title)
	assert.Equal(t, "Sunrise", listPhotos(t, s)[0].Title)
}

func TestUpdatePhotoErrors(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	rec := s.do(updateRequest(t, UpdatePhotoRequest{ID: "missing", Title: "a", Location: "b", Date: "c"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(updateRequest(t, UpdatePhotoRequest{ID: "x", Title: "a"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(updateRequest(t, UpdatePhotoRequest{Title: "a", Location: "b", Date: "c"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/photos", strings.NewReader(`{badjson`))
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)

	req = updateRequest(t, UpdatePhotoRequest{ID: "x", Title: "a", Location: "b", Date: "c"})
	req.Header.Del(middleware.AdminKeyHeader)
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)
}

func TestUpdatePhotoBodyTooLarge(t *testing.T) {
	s := newTestServer(t, testAdminKey)
	created := decode[models.Photo](t, s.do(singleUpload(t, "Sunset")))

	rec := s.do(updateRequest(t, UpdatePhotoRequest{
		ID: created.ID, Title: "a", Location: "b", Date: "c",
		Description: strings.Repeat("x", maxJSONBodyBytes+1),
	}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Sunset", listPhotos(t, s)[0].Title)
}

func deleteRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/api/photos?id="+id, nil)
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	return req
}

func TestDeletePhoto(t *testing.T) {
	s := newTestServer(t, testAdminKey)
	created := decode[models.Photo](t, s.do(singleUpload(t, "Sunset")))

	rec := s.do(deleteRequest(created.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"id":"`+created.ID+`"}`, rec.Body.String())
	assert.Empty(t, listPhotos(t, s))

	assert.Equal(t, http.StatusNotFound, s.do(deleteRequest(created.ID)).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(deleteRequest("")).Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, created.Src, nil)).Code)
}

func TestUnconfiguredServerRejectsAllWrites(t *testing.T) {
	s := newTestServer(t, "")

	for _, key := range []string{"", "anything", testAdminKey} {
		req := singleUpload(t, "Sunset")
		req.Header.Set(middleware.AdminKeyHeader, key)
		assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)

		del := deleteRequest("1")
		del.Header.Set(middleware.AdminKeyHeader, key)
		assert.Equal(t, http.StatusUnauthorized, s.do(del).Code)
	}
	assert.Zero(t, s.store.Len())

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMediaNotFound(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/media/images/nope.jpg", nil)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/media/images/", nil)).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testAdminKey)

	rec := s.do(httptest.NewRequest(http.MethodOptions, "/api/photos", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), middleware.AdminKeyHeader)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestAllowedImageMIME(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantMIME     string
		wantDetected bool
	}{
		{"JPEG", jpegBytes, "image/jpeg", true},
		{"PNG", pngBytes, "image/png", true},
		{"GIF", []byte("GIF89a"), "image/gif", true},
		{"WebP", append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 10)...), "image/webp", true},
		{"RIFF but not WebP", append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 10)...), "", false},
		{"PDF", []byte("%PDF-1.4"), "", false},
		{"empty", []byte{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMIME, gotDetected := allowedImageMIME(tt.data)
			assert.Equal(t, tt.wantDetected, gotDetected)
			assert.Equal(t, tt.wantMIME, gotMIME)
		})
	}
}
