// Package classifier sends captured stills to a remote crying detector.
//
// The production backend is Client, which uploads the photo to the
// analyze_camera_photo endpoint:
//
//	c, _ := classifier.NewClient(
//	    classifier.WithBaseURL(os.Getenv("DOMEN")),
//	    classifier.WithTimeout(10*time.Second),
//	)
//	res, err := c.Classify(ctx, photo)
//	if err == nil && res.EmotionDetected {
//	    // crying
//	}
//
// OpenAI asks a vision model the same question and is handy when no
// detector server is available. Mock is for tests.
package classifier

import (
	"context"
	"time"

	"github.com/teslashibe/crywatch/pkg/camera"
)

// Classifier decides whether the person in a photo is crying.
type Classifier interface {
	// Classify uploads one photo and returns the verdict.
	Classify(ctx context.Context, photo *camera.Photo) (*Result, error)
}

// Result is one classification verdict.
type Result struct {
	// EmotionDetected is true when crying was detected.
	EmotionDetected bool

	// Backend names the classifier that produced the result.
	Backend string

	// Latency is the round-trip time of the request.
	Latency time.Duration
}
