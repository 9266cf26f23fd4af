package smoke

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/okian/civiclens/internal/domain/model"
)

// sampleHost is never fetched when the service runs without storage; with the
// fallback classifier the filename alone decides the event type.
const sampleHost = "https://samples.civiclens.invalid/reports"

// sampleSubjects cycle through the taxonomy so every keyword path gets traffic.
var sampleSubjects = []string{
	"pothole",
	"garbage",
	"streetlight",
	"manhole",
	"illegal-parking",
	"fallen-tree",
	"standing-water",
	"illegal-construction",
	"unlabelled",
}

// generateRequests builds n distinct requests. Each URL carries a fresh uuid
// so the result cache never answers a smoke submit.
func generateRequests(cfg *Config) []model.TaskRequest {
	ext := "jpg"
	if cfg.MediaType == model.MediaVideo {
		ext = "mp4"
	}

	out := make([]model.TaskRequest, cfg.Count)
	for i := range out {
		subject := sampleSubjects[i%len(sampleSubjects)]
		out[i] = model.TaskRequest{
			MediaURL:  fmt.Sprintf("%s/%s/%s.%s", sampleHost, uuid.NewString(), subject, ext),
			MediaType: cfg.MediaType,
		}
		if cfg.MediaType == model.MediaVideo {
			out[i].MaxFrames = cfg.MaxFrames
		}
	}
	return out
}
