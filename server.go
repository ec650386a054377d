package rangeserve

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/menmos/rangeserve/config"
	"github.com/menmos/rangeserve/payload"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const indexBody = "Video Streaming Server"

// Options tunes a Server. Zero values select the defaults of the config package.
type Options struct {
	DefaultFile string
	ChunkSize   int
	AllowOrigin string
	NoStore     bool
	Logger      logrus.FieldLogger
}

// videoLibrary resolves request names to stores; *Library is the production implementation.
type videoLibrary interface {
	OpenStore(name string) (ByteStore, error)
	Stat(name string) (int64, error)
}

// Server serves the files of a storage root with byte-range support.
type Server struct {
	library     videoLibrary
	streamer    *Streamer
	defaultFile string
	allowOrigin string
	noStore     bool
	log         logrus.FieldLogger
	mux         *http.ServeMux
}

// NewServer returns a server for the files below root.
func NewServer(root string, opts Options) *Server {
	if opts.DefaultFile == "" {
		opts.DefaultFile = config.DefaultFile
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	s := &Server{
		library:     NewLibrary(root),
		streamer:    NewStreamer(opts.ChunkSize),
		defaultFile: opts.DefaultFile,
		allowOrigin: opts.AllowOrigin,
		noStore:     opts.NoStore,
		log:         opts.Logger,
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /video", s.handleVideo)
	s.mux.HandleFunc("GET /video/info", s.handleVideoInfo)
	s.mux.HandleFunc("GET /video/{name...}", s.handleVideo)

	return s
}

// NewServerFromProfile initializes a server from a configuration profile.
func NewServerFromProfile(profile config.Profile, logger logrus.FieldLogger) *Server {
	return NewServer(profile.Root, Options{
		DefaultFile: profile.DefaultFile,
		ChunkSize:   profile.ChunkSize,
		AllowOrigin: profile.AllowOrigin,
		NoStore:     profile.NoStore,
		Logger:      logger,
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w}

	if s.allowOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
	}

	s.mux.ServeHTTP(recorder, r)

	s.log.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"range":    r.Header.Get("Range"),
		"status":   recorder.statusCode(),
		"bytes":    recorder.written,
		"duration": time.Since(started),
	}).Info("request served")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(indexBody))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, payload.MessageResponse{Message: "ok"})
}

func (s *Server) videoName(r *http.Request) string {
	if name := r.PathValue("name"); name != "" {
		return name
	}
	if name := r.URL.Query().Get("file"); name != "" {
		return name
	}
	return s.defaultFile
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	name := s.videoName(r)

	size, err := s.library.Stat(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, payload.MessageResponse{Message: "Video not found"})
			return
		}
		s.log.WithError(err).WithField("name", name).Error("failed to stat video")
		s.writeJSON(w, http.StatusInternalServerError, payload.MessageResponse{Message: "internal error"})
		return
	}

	meta := payload.NewVideoMeta(name, size, ContentTypeFor(name))
	s.writeJSON(w, http.StatusOK, payload.GetMetadataResponse{Metadata: &meta})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	name := s.videoName(r)
	log := s.log.WithField("name", name)

	store, err := s.library.OpenStore(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithError(err).Debug("video not found")
			http.Error(w, "Video not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("failed to open video")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer store.Close()

	// Repeated Range lines are joined so they are rejected like a multi-range value.
	rangeHeader := strings.Join(r.Header.Values("Range"), ",")

	rng, err := ParseRange(rangeHeader, store.Size())
	if err != nil {
		if !IsRangeError(err) {
			log.WithError(err).Error("failed to evaluate range")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		log.WithError(err).Debug("rejected range")
		w.Header().Set("Content-Range", unsatisfiedContentRange(store.Size()))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if s.noStore {
		w.Header().Set("Cache-Control", "no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
	}

	if r.Method == http.MethodHead {
		s.streamer.Head(w, store, rng)
		return
	}

	result, err := s.streamer.Stream(w, store, rng)
	if err != nil {
		if !result.Committed {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		log.WithError(err).WithField("written", result.Written).Error("video stream aborted")
		return
	}

	if result.PeerGone {
		log.WithField("written", result.Written).Debug("client went away during stream")
	}
	if result.Truncated {
		log.WithField("written", result.Written).Warn("video ended before the announced length")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Debug("failed to write JSON response")
	}
}

// statusRecorder remembers what was sent through a ResponseWriter for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	if r.status == 0 {
		r.status = statusCode
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *statusRecorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
