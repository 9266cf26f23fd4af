package smoke

import (
	"time"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/logger"
)

// Config holds parameters for a smoke run.
type Config struct {
	BaseURL      string        // service root, e.g. http://localhost:9080
	Count        int           // async analyses to submit
	Workers      int           // concurrent submitters and pollers
	Timeout      time.Duration // per HTTP request
	PollInterval time.Duration
	Deadline     time.Duration // per task, from submit to terminal state
	MediaType    model.MediaType
	MaxFrames    int
	Verbose      bool
	Logger       logger.Logger // nil discards output
}

// Stats summarises a run.
type Stats struct {
	Submitted  int
	Rejected   int // 429 backpressure
	Completed  int
	Failed     int
	Stuck      int // never reached a terminal state
	Violations []string
	Duration   time.Duration
}

// OK reports whether every submitted task finished without a lifecycle violation.
func (s Stats) OK() bool {
	return s.Stuck == 0 && len(s.Violations) == 0
}
