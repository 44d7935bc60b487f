package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"igloader/pkg/instagram"
	"igloader/pkg/storage"
)

// PostMetadata is the JSON sidecar written next to a downloaded post
type PostMetadata struct {
	// Core identifiers
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
	URL       string `json:"url"`
	Typename  string `json:"typename"`

	// Media properties
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	AspectRatio string      `json:"aspect_ratio"`
	IsVideo     bool        `json:"is_video"`
	Media       []MediaFile `json:"media"`

	// Timestamps
	TakenAt      time.Time `json:"taken_at"`
	DownloadedAt time.Time `json:"downloaded_at"`

	// Content
	Caption              string    `json:"caption,omitempty"`
	AccessibilityCaption string    `json:"accessibility_caption,omitempty"`
	Location             *Location `json:"location,omitempty"`

	// Engagement
	LikesCount    int `json:"likes_count"`
	CommentsCount int `json:"comments_count"`
	VideoViews    int `json:"video_views,omitempty"`

	Owner Owner `json:"owner"`

	CommentsDisabled bool `json:"comments_disabled"`
}

// MediaFile describes one file of the post on disk
type MediaFile struct {
	Index   int    `json:"index"`
	File    string `json:"file"`
	URL     string `json:"url"`
	IsVideo bool   `json:"is_video"`
}

// Location represents geographic location
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Owner represents the media owner
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// FromPost converts a fetched post and the file names of its media
// into PostMetadata. files is indexed like post.Items().
func FromPost(post *instagram.Post, files []string) *PostMetadata {
	meta := &PostMetadata{
		ID:                   post.ID,
		Shortcode:            post.Shortcode,
		URL:                  instagram.GetPostURL(post.Shortcode),
		Typename:             post.Typename,
		Width:                post.Dimensions.Width,
		Height:               post.Dimensions.Height,
		IsVideo:              post.IsVideo,
		TakenAt:              post.TakenAt(),
		DownloadedAt:         time.Now().UTC(),
		Caption:              post.CaptionText(),
		AccessibilityCaption: post.AccessibilityCaption,
		LikesCount:           post.Likes.Count,
		CommentsCount:        post.Comments.Count,
		VideoViews:           post.VideoViewCount,
		CommentsDisabled:     post.CommentsDisabled,
		Owner: Owner{
			ID:       post.Owner.ID,
			Username: post.Owner.Username,
			FullName: post.Owner.FullName,
		},
	}
	meta.AspectRatio = meta.GetAspectRatio()

	if post.Location != nil {
		meta.Location = &Location{
			ID:   post.Location.ID,
			Name: post.Location.Name,
			Slug: post.Location.Slug,
		}
	}

	for i, item := range post.Items() {
		file := ""
		if i < len(files) {
			file = files[i]
		}
		meta.Media = append(meta.Media, MediaFile{
			Index:   item.Index,
			File:    file,
			URL:     item.URL,
			IsVideo: item.IsVideo,
		})
	}

	return meta
}

// Save writes the metadata as indented JSON through the store
func (m *PostMetadata) Save(store *storage.Manager, name string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if _, err := store.Save(bytes.NewReader(data), name); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// SaveCaption writes the caption as a plain text file. Empty captions are skipped.
func (m *PostMetadata) SaveCaption(store *storage.Manager, name string) error {
	if m.Caption == "" {
		return nil
	}
	if _, err := store.Save(bytes.NewBufferString(m.Caption+"\n"), name); err != nil {
		return fmt.Errorf("failed to write caption file: %w", err)
	}
	return nil
}

// Load reads metadata from a JSON file
func Load(path string) (*PostMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta PostMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// GetAspectRatio returns the aspect ratio as a string
func (m *PostMetadata) GetAspectRatio() string {
	if m.Height == 0 {
		return "unknown"
	}

	ratio := float64(m.Width) / float64(m.Height)

	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.79 && ratio < 0.81:
		return "4:5"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}
