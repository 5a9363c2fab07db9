package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClipSelection is one requested [start, end) range of a source video
type ClipSelection struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	VideoURL string `json:"videoUrl"`
	Reason   string `json:"reason,omitempty"`
}

// Range parses the clip bounds and returns the start offset and duration in seconds
func (c ClipSelection) Range() (start, duration float64, err error) {
	s, err := ParseTimestamp(c.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	e, err := ParseTimestamp(c.End)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	if e <= s {
		return 0, 0, fmt.Errorf("end %s must be after start %s", c.End, c.Start)
	}
	return s.Seconds(), e.Seconds() - s.Seconds(), nil
}

// CompilationRequest asks for the clips to be joined, in order, into one video
type CompilationRequest struct {
	VideoID     string          `json:"videoId"`
	Clips       []ClipSelection `json:"clips"`
	CallbackURL string          `json:"callbackUrl,omitempty"`
}

// Validate rejects the whole request if any part of it is unusable
func (r *CompilationRequest) Validate() error {
	if strings.TrimSpace(r.VideoID) == "" || len(r.Clips) == 0 {
		return InvalidRequest("Invalid request. Required: videoId, clips array with videoUrl for each clip")
	}

	for _, clip := range r.Clips {
		if strings.TrimSpace(clip.VideoURL) == "" {
			return InvalidRequest("All clips must have a videoUrl property")
		}
	}

	for i, clip := range r.Clips {
		if _, _, err := clip.Range(); err != nil {
			return InvalidRequest("clip %d: %v", i, err)
		}
	}

	return nil
}

// SourceURLs returns the distinct source URLs in first-seen order
func (r *CompilationRequest) SourceURLs() []string {
	seen := make(map[string]struct{}, len(r.Clips))
	urls := make([]string, 0, len(r.Clips))
	for _, clip := range r.Clips {
		if _, ok := seen[clip.VideoURL]; ok {
			continue
		}
		seen[clip.VideoURL] = struct{}{}
		urls = append(urls, clip.VideoURL)
	}
	return urls
}

// OutputName is the object name of the finished compilation
func (r *CompilationRequest) OutputName(now time.Time) string {
	return fmt.Sprintf("%s-highlights-%d.mp4", r.VideoID, now.UnixMilli())
}

// NewJobID returns a time-based id with a random suffix.
// Unique within a process lifetime; not suitable as a secret.
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("job-%d-%s", now.UnixMilli(), suffix)
}
