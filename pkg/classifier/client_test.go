package classifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/crywatch/internal/log"
	"github.com/teslashibe/crywatch/pkg/camera"
	"github.com/teslashibe/crywatch/pkg/classifier/stub"
)

var testPhoto = &camera.Photo{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0xFF, 0xD9}}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(WithBaseURL(url+"/"), WithTimeout(2*time.Second), WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestEndpoint(t *testing.T) {
	tests := map[string]string{
		"http://host:8000/":     "http://host:8000/api/analyze_camera_photo/",
		"http://host:8000":      "http://host:8000/api/analyze_camera_photo/",
		"https://x.io/backend/": "https://x.io/backend/api/analyze_camera_photo/",
	}
	for base, want := range tests {
		if got := Endpoint(base); got != want {
			t.Errorf("Endpoint(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("err = %v, want ErrNoBaseURL", err)
	}
}

func TestClient_UploadLayout(t *testing.T) {
	var gotPath, gotMethod, gotFilename, gotType, gotField string
	var gotBody []byte
	var parts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		mr, err := r.MultipartReader()
		if err != nil {
			t.Errorf("not multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("NextPart: %v", err)
				break
			}
			parts++
			gotField = p.FormName()
			gotFilename = p.FileName()
			gotType = p.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(p)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"emotion_detected": true}`)
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).Classify(context.Background(), testPhoto)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.EmotionDetected {
		t.Error("EmotionDetected = false, want true")
	}

	if gotMethod != http.MethodPost || gotPath != "/api/analyze_camera_photo/" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if parts != 1 {
		t.Errorf("parts = %d, want 1", parts)
	}
	if gotField != "photo" || gotFilename != "photo.jpg" || gotType != "image/jpeg" {
		t.Errorf("part = field %q file %q type %q", gotField, gotFilename, gotType)
	}
	if string(gotBody) != string(testPhoto.Data) {
		t.Errorf("part body = %x, want %x", gotBody, testPhoto.Data)
	}
}

func TestClient_Responses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     bool
		wantErr  error
		wantCode int
	}{
		{name: "detected", status: 200, body: `{"emotion_detected": true}`, want: true},
		{name: "not detected", status: 200, body: `{"emotion_detected": false}`, want: false},
		{name: "missing field", status: 200, body: `{"emotion": true}`, wantErr: ErrMalformedResponse},
		{name: "string field", status: 200, body: `{"emotion_detected": "yes"}`, wantErr: ErrMalformedResponse},
		{name: "null field", status: 200, body: `{"emotion_detected": null}`, wantErr: ErrMalformedResponse},
		{name: "not json", status: 200, body: `<html>oops</html>`, wantErr: ErrMalformedResponse},
		{name: "server error", status: 500, body: `{"error": "Failed to detect emotion"}`, wantCode: 500},
		{name: "bad request", status: 400, body: `{"error": "Please provide image"}`, wantCode: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			res, err := newTestClient(t, srv.URL).Classify(context.Background(), testPhoto)

			switch {
			case tt.wantCode != 0:
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("err = %v, want *APIError", err)
				}
				if apiErr.StatusCode != tt.wantCode {
					t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantCode)
				}
				if !strings.Contains(apiErr.Message, "emotion") && !strings.Contains(apiErr.Message, "image") {
					t.Errorf("Message = %q, want the server's error field", apiErr.Message)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("Classify: %v", err)
				}
				if res.EmotionDetected != tt.want {
					t.Errorf("EmotionDetected = %v, want %v", res.EmotionDetected, tt.want)
				}
			}
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Classify(context.Background(), testPhoto)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv.URL).Classify(ctx, testPhoto)
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want ErrNetwork wrapping DeadlineExceeded", err)
	}
}

func TestClient_NoPhoto(t *testing.T) {
	c := newTestClient(t, "http://localhost:1")
	if _, err := c.Classify(context.Background(), nil); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("err = %v, want ErrNoPhoto", err)
	}
	if _, err := c.Classify(context.Background(), &camera.Photo{}); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("err = %v, want ErrNoPhoto", err)
	}
}

func TestClient_AgainstStub(t *testing.T) {
	s := stub.New(stub.Sequence(false, true), log.Discard())
	srv := httptest.NewServer(s)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for _, want := range []bool{false, true} {
		res, err := c.Classify(context.Background(), testPhoto)
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		if res.EmotionDetected != want {
			t.Errorf("EmotionDetected = %v, want %v", res.EmotionDetected, want)
		}
	}
	if s.Received() != 2 {
		t.Errorf("stub received %d photos, want 2", s.Received())
	}
}

func TestMock(t *testing.T) {
	m := NewMock(true)
	res, err := m.Classify(context.Background(), testPhoto)
	if err != nil || !res.EmotionDetected {
		t.Fatalf("Classify = %+v, %v", res, err)
	}
	if m.CallCount() != 1 || m.Calls()[0].Photo != testPhoto {
		t.Errorf("calls = %+v", m.Calls())
	}

	if res, _ := NewMock(false).Classify(context.Background(), testPhoto); res.EmotionDetected {
		t.Error("NewMock(false) answered detected")
	}

	boom := errors.New("boom")
	if _, err := MockError(boom).Classify(context.Background(), testPhoto); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
