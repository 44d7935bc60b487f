package instagram

import "time"

// PostResponse is the GraphQL envelope returned for a shortcode query
type PostResponse struct {
	RequiresToLogin bool     `json:"requires_to_login"`
	Data            PostData `json:"data"`
	Status          string   `json:"status"`
}

// PostData wraps the post; ShortcodeMedia is nil when Instagram withholds it
type PostData struct {
	ShortcodeMedia *Post `json:"xdt_shortcode_media"`
}

// Post is a single Instagram post as returned by the shortcode query
type Post struct {
	ID                   string        `json:"id"`
	Shortcode            string        `json:"shortcode"`
	Typename             string        `json:"__typename"`
	DisplayURL           string        `json:"display_url"`
	VideoURL             string        `json:"video_url,omitempty"`
	IsVideo              bool          `json:"is_video"`
	TakenAtTimestamp     int64         `json:"taken_at_timestamp"`
	Dimensions           Dimensions    `json:"dimensions"`
	Owner                Owner         `json:"owner"`
	Caption              CaptionEdges  `json:"edge_media_to_caption"`
	Likes                CountEdge     `json:"edge_media_preview_like"`
	Comments             CountEdge     `json:"edge_media_to_parent_comment"`
	Children             *SidecarEdges `json:"edge_sidecar_to_children,omitempty"`
	Location             *Location     `json:"location,omitempty"`
	AccessibilityCaption string        `json:"accessibility_caption,omitempty"`
	CommentsDisabled     bool          `json:"comments_disabled"`
	VideoViewCount       int           `json:"video_view_count,omitempty"`
}

// Dimensions of a photo or video
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Owner is the profile that published a post
type Owner struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	IsVerified bool   `json:"is_verified"`
	IsPrivate  bool   `json:"is_private"`
}

// CaptionEdges holds the caption text nodes
type CaptionEdges struct {
	Edges []struct {
		Node struct {
			Text string `json:"text"`
		} `json:"node"`
	} `json:"edges"`
}

// CountEdge carries a counter such as likes or comments
type CountEdge struct {
	Count int `json:"count"`
}

// SidecarEdges lists the children of a carousel post
type SidecarEdges struct {
	Edges []struct {
		Node SidecarNode `json:"node"`
	} `json:"edges"`
}

// SidecarNode is one carousel slide
type SidecarNode struct {
	ID         string     `json:"id"`
	Shortcode  string     `json:"shortcode"`
	Typename   string     `json:"__typename"`
	DisplayURL string     `json:"display_url"`
	VideoURL   string     `json:"video_url,omitempty"`
	IsVideo    bool       `json:"is_video"`
	Dimensions Dimensions `json:"dimensions"`
}

// Location is the tagged place of a post
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// MediaItem is one downloadable file of a post
type MediaItem struct {
	// Index is 0 for single-media posts and 1-based for sidecar children
	Index int
	// URL is the video for videos and the image otherwise
	URL     string
	IsVideo bool
	// DisplayURL is the image, or the cover frame of a video
	DisplayURL string
}

// CaptionText returns the first caption node, or an empty string
func (p *Post) CaptionText() string {
	if len(p.Caption.Edges) == 0 {
		return ""
	}
	return p.Caption.Edges[0].Node.Text
}

// TakenAt returns the post timestamp in UTC
func (p *Post) TakenAt() time.Time {
	return time.Unix(p.TakenAtTimestamp, 0).UTC()
}

// IsSidecar reports whether the post is a carousel
func (p *Post) IsSidecar() bool {
	return p.Typename == "GraphSidecar" || p.Typename == "XDTGraphSidecar" ||
		(p.Children != nil && len(p.Children.Edges) > 0)
}

// Items expands the post into the media files it consists of
func (p *Post) Items() []MediaItem {
	if p.IsSidecar() && p.Children != nil {
		items := make([]MediaItem, 0, len(p.Children.Edges))
		for i, edge := range p.Children.Edges {
			items = append(items, mediaItem(i+1, edge.Node.IsVideo, edge.Node.VideoURL, edge.Node.DisplayURL))
		}
		return items
	}
	return []MediaItem{mediaItem(0, p.IsVideo, p.VideoURL, p.DisplayURL)}
}

func mediaItem(index int, isVideo bool, videoURL, displayURL string) MediaItem {
	if isVideo && videoURL != "" {
		return MediaItem{Index: index, URL: videoURL, IsVideo: true, DisplayURL: displayURL}
	}
	return MediaItem{Index: index, URL: displayURL, DisplayURL: displayURL}
}

// ProfileResponse represents the web_profile_info response
type ProfileResponse struct {
	RequiresToLogin bool        `json:"requires_to_login"`
	Data            ProfileData `json:"data"`
	Status          string      `json:"status"`
}

// ProfileData wraps the user; User is nil for unknown profiles
type ProfileData struct {
	User *Profile `json:"user"`
}

// Profile is the subset of profile fields the loader needs
type Profile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	IsPrivate  bool   `json:"is_private"`
	IsVerified bool   `json:"is_verified"`
}
