package models

import (
	"fmt"
	"strings"
)

// Photo represents a single entry of the gallery
type Photo struct {
	ID          string `json:"id"`
	Src         string `json:"src"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// PhotoMeta holds the mutable fields of a photo
type PhotoMeta struct {
	Title       string `json:"title"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// Meta returns the mutable fields of the photo
func (p Photo) Meta() PhotoMeta {
	return PhotoMeta{
		Title:       p.Title,
		Location:    p.Location,
		Date:        p.Date,
		Description: p.Description,
	}
}

// Apply replaces the mutable fields, leaving ID and Src untouched
func (p *Photo) Apply(meta PhotoMeta) {
	p.Title = meta.Title
	p.Location = meta.Location
	p.Date = meta.Date
	p.Description = meta.Description
}

// MissingField returns the name of the first required field that is blank.
// It applies to incoming requests; stored records are checked by Validate.
func (m PhotoMeta) MissingField() string {
	switch {
	case strings.TrimSpace(m.Title) == "":
		return "title"
	case strings.TrimSpace(m.Location) == "":
		return "location"
	case strings.TrimSpace(m.Date) == "":
		return "date"
	}
	return ""
}

// Validate checks a stored photo record against the collection schema
func (p Photo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("photo has empty id")
	}
	if p.Src == "" {
		return fmt.Errorf("photo %s has empty src", p.ID)
	}
	// stored records only need non-empty strings, whitespace included
	switch {
	case p.Title == "":
		return fmt.Errorf("photo %s has empty title", p.ID)
	case p.Location == "":
		return fmt.Errorf("photo %s has empty location", p.ID)
	case p.Date == "":
		return fmt.Errorf("photo %s has empty date", p.ID)
	}
	return nil
}

// ValidateCollection checks every record and the uniqueness of ids
func ValidateCollection(photos []Photo) error {
	seen := make(map[string]struct{}, len(photos))
	for i, p := range photos {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("record %d: duplicate id %s", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Upload is one image with its metadata
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	Meta        PhotoMeta
}

// Event is pushed to live gallery viewers after a mutation
type Event struct {
	Type    string  `json:"type"`
	PhotoID string  `json:"photo_id,omitempty"`
	Photos  []Photo `json:"photos,omitempty"`
}

const (
	EventPhotosCreated = "photos_created"
	EventPhotoUpdated  = "photo_updated"
	EventPhotoDeleted  = "photo_deleted"
)
