// Package stub serves a stand-in for the crying detector so the monitor
// can run end to end without the real model server.
package stub

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
)

// maxUpload bounds the multipart form kept in memory.
const maxUpload = 10 << 20

// ErrNoFace mimics the detector failing to find a face.
var ErrNoFace = errors.New("no face found")

// Decider returns the verdict for one uploaded JPEG.
type Decider func(photo []byte) (bool, error)

// Fixed always answers b.
func Fixed(b bool) Decider {
	return func([]byte) (bool, error) { return b, nil }
}

// Sequence cycles through values, one per upload.
func Sequence(values ...bool) Decider {
	var mu sync.Mutex
	i := 0
	return func([]byte) (bool, error) {
		if len(values) == 0 {
			return false, ErrNoFace
		}
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)]
		i++
		return v, nil
	}
}

// Server is the stub detector.
type Server struct {
	router   *mux.Router
	decide   Decider
	logger   *slog.Logger
	received atomic.Int64
}

// New builds the stub router.
func New(decide Decider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: mux.NewRouter(),
		decide: decide,
		logger: logger.With("component", "classifier.stub"),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze_camera_photo/", s.handleAnalyzePhoto).Methods(http.MethodPost)
	api.HandleFunc("/test_api_get/", s.handleTestGet).Methods(http.MethodGet)
	api.HandleFunc("/test_api_post/", s.handleTestPost).Methods(http.MethodPost)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Received returns how many photos were accepted.
func (s *Server) Received() int64 {
	return s.received.Load()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "OK\n")
}

func (s *Server) handleAnalyzePhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please provide image"})
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please provide image"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please provide image"})
		return
	}
	s.received.Add(1)
	s.logger.Debug("photo received", "filename", header.Filename, "size", len(data))

	detected, err := s.decide(data)
	if err != nil {
		s.logger.Warn("analysis failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to detect emotion"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emotion_detected": detected})
}

func (s *Server) handleTestGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "Hello from the crywatch stub"})
}

func (s *Server) handleTestPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpload))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	var data any
	if err := sonic.Unmarshal(body, &data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": data})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
