package classifier

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// detectionResponse is the body of a classifier reply. Pointer fields tell
// a missing key apart from false.
type detectionResponse struct {
	EmotionDetected *bool  `json:"emotion_detected"`
	Error           string `json:"error,omitempty"`
}

// decodeDetection extracts emotion_detected from a JSON body.
func decodeDetection(body []byte) (bool, error) {
	var resp detectionResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("%w: %v (body: %s)", ErrMalformedResponse, err, truncate(string(body), 200))
	}
	if resp.EmotionDetected == nil {
		return false, fmt.Errorf("%w: emotion_detected missing (body: %s)", ErrMalformedResponse, truncate(string(body), 200))
	}
	return *resp.EmotionDetected, nil
}

// errorMessage pulls the "error" field out of an error body, falling back
// to the trimmed body itself.
func errorMessage(body []byte) string {
	var resp detectionResponse
	if err := sonic.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}

// truncate shortens a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
