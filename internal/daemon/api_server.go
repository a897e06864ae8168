package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"lcdbridge/internal/config"
	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/playback"
	"lcdbridge/internal/state"
	"lcdbridge/internal/store"
)

const (
	maxFrameBody   = 16 << 20
	maxControlBody = 64 << 10
)

// knownImages are the device artwork names the plugin may request.
var knownImages = map[string]struct{}{
	"2023elite": {},
	"2023":      {},
	"z3":        {},
	"plugin":    {},
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	device.Info
	Mode       string             `json:"mode"`
	Online     bool               `json:"online"`
	GIFMode    bool               `json:"gifMode"`
	GIFPath    string             `json:"gifPath"`
	GIFRunning bool               `json:"gifRunning"`
	GIFConfig  state.PlaybackSpec `json:"gifConfig"`
	FPS        float64            `json:"fps"`
	GIFFPS     float64            `json:"gifFps"`
	Telemetry  state.Snapshot     `json:"telemetry"`
}

// Ack is the body of every control endpoint. Failures are logged, not
// reported; Status only tells the caller whether the request was acted on.
type Ack struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
}

// HistoryResponse is the body of GET /gif/history.
type HistoryResponse struct {
	Uploads []store.Upload `json:"uploads"`
}

type apiServer struct {
	bind      string
	assetsDir string
	logger    *slog.Logger
	comp      *Components

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, comp *Components, logger *slog.Logger) *apiServer {
	if cfg == nil || comp == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:      bind,
		assetsDir: cfg.Paths.AssetsDir,
		logger:    logging.NewComponentLogger(logger, "api-server"),
		comp:      comp,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleInfo)
	mux.HandleFunc("/images/", srv.handleImage)
	mux.HandleFunc("/frame", srv.handleFrame)
	mux.HandleFunc("/brightness", srv.withRequestID(srv.handleBrightness))
	mux.HandleFunc("/gif", srv.withRequestID(srv.handleGIF))
	mux.HandleFunc("/gif/config", srv.withRequestID(srv.handleGIFConfig))
	mux.HandleFunc("/gif/stop", srv.withRequestID(srv.handleGIFStop))
	mux.HandleFunc("/gif/resume", srv.withRequestID(srv.handleGIFResume))
	mux.HandleFunc("/gif/history", srv.handleGIFHistory)
	if cfg.Metrics.Enabled && comp.Metrics != nil {
		mux.Handle("/metrics", comp.Metrics.Handler())
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check whether another process owns the bind address"),
				logging.String(logging.FieldImpact, "frames and playback requests are no longer accepted"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	}
}

func (s *apiServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	shared := s.comp.Shared
	status := shared.Playback()
	lastKnown := shared.LastKnown()
	mode := shared.Mode()
	s.writeJSON(w, http.StatusOK, InfoResponse{
		Info:       s.comp.Device.Info(),
		Mode:       mode.String(),
		Online:     shared.DeviceOnline(),
		GIFMode:    mode == state.Playback,
		GIFPath:    status.Path,
		GIFRunning: status.Live,
		GIFConfig:  lastKnown,
		FPS:        shared.StreamFPS(),
		GIFFPS:     status.FPS,
		Telemetry:  shared.Telemetry.Snapshot(),
	})
}

func (s *apiServer) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	file := strings.TrimPrefix(r.URL.Path, "/images/")
	name, ok := strings.CutSuffix(file, ".png")
	if _, known := knownImages[name]; !ok || !known || s.assetsDir == "" {
		s.writeError(w, http.StatusNotFound, "image not found")
		return
	}
	path := filepath.Join(s.assetsDir, name+".png")
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		s.writeError(w, http.StatusNotFound, "image not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBody))
	if err != nil {
		s.logger.Debug("frame body unreadable", logging.Error(err))
		s.writeJSON(w, http.StatusOK, Ack{Status: "dropped"})
		return
	}
	if !s.comp.Pipeline.Ingest(r.Context(), body) {
		s.writeJSON(w, http.StatusOK, Ack{Status: "dropped"})
		return
	}
	s.writeJSON(w, http.StatusOK, Ack{Status: "queued"})
}

type brightnessRequest struct {
	Brightness *float64 `json:"brightness"`
}

func (s *apiServer) handleBrightness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)
	var req brightnessRequest
	err := s.decode(w, r, &req)
	if err == nil && req.Brightness == nil {
		err = errors.New("brightness missing")
	}
	if err != nil {
		logger.Warn("brightness request ignored",
			logging.Error(err),
			logging.String(logging.FieldEventType, "brightness_request_invalid"),
			logging.String(logging.FieldErrorHint, `send {"brightness": 0-100}`),
			logging.String(logging.FieldImpact, "display brightness unchanged"),
		)
		s.writeJSON(w, http.StatusOK, Ack{Status: "ignored"})
		return
	}
	level := clampBrightness(*req.Brightness)
	err = s.comp.Device.Do("brightness", func(gw device.Gateway) error {
		return gw.SetBrightness(level)
	})
	if err != nil {
		logging.WarnWithContext(logger, "set brightness failed", "brightness_failed",
			logging.Int("level", level),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the USB connection to the cooler"),
			logging.String(logging.FieldImpact, "display brightness unchanged"),
		)
		s.writeJSON(w, http.StatusOK, Ack{Status: "failed"})
		return
	}
	logger.Info("brightness set", logging.Int("level", level))
	s.writeJSON(w, http.StatusOK, Ack{Status: "ok"})
}

func clampBrightness(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}

func (s *apiServer) handleGIF(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.readSpec(w, r)
	if !ok {
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)
	id, err := s.comp.Playback.Enter(r.Context(), spec)
	if err != nil {
		logging.WarnWithContext(logger, "playback request rejected", "playback_request_rejected",
			logging.String("path", spec.SourcePath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "send the absolute path of a readable GIF"),
			logging.String(logging.FieldImpact, "display keeps its current mode"),
		)
		s.writeJSON(w, http.StatusOK, Ack{Status: "ignored"})
		return
	}
	s.writeJSON(w, http.StatusOK, Ack{Status: "started", SessionID: id})
}

func (s *apiServer) handleGIFConfig(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.readSpec(w, r)
	if !ok {
		return
	}
	if err := s.comp.Playback.Save(r.Context(), spec); err != nil {
		logging.WithContext(r.Context(), s.logger).Debug("playback config not saved", logging.Error(err))
		s.writeJSON(w, http.StatusOK, Ack{Status: "ignored"})
		return
	}
	s.writeJSON(w, http.StatusOK, Ack{Status: "saved"})
}

func (s *apiServer) handleGIFStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.comp.Playback.Leave(r.Context()); err != nil {
		s.writeJSON(w, http.StatusOK, Ack{Status: "failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, Ack{Status: "stopped"})
}

func (s *apiServer) handleGIFResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := s.comp.Playback.Resume(r.Context())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "playback resume rejected", "playback_resume_rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "configure a source with POST /gif/config first"),
			logging.String(logging.FieldImpact, "display keeps its current mode"),
		)
		s.writeJSON(w, http.StatusOK, Ack{Status: "ignored"})
		return
	}
	s.writeJSON(w, http.StatusOK, Ack{Status: "started", SessionID: id})
}

func (s *apiServer) handleGIFHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.comp.Store == nil {
		s.writeJSON(w, http.StatusOK, HistoryResponse{Uploads: []store.Upload{}})
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	uploads, err := s.comp.Store.RecentUploads(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if uploads == nil {
		uploads = []store.Upload{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Uploads: uploads})
}

// readSpec parses a playback body. Malformed bodies are answered here with
// the generic acknowledgement.
func (s *apiServer) readSpec(w http.ResponseWriter, r *http.Request) (state.PlaybackSpec, bool) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return state.PlaybackSpec{}, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxControlBody))
	if err == nil {
		var spec state.PlaybackSpec
		if spec, err = playback.ParseSpec(body); err == nil {
			return spec, true
		}
	}
	logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "playback body rejected", "playback_request_invalid",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "send a JSON object with at least a path field"),
		logging.String(logging.FieldImpact, "request ignored"),
	)
	s.writeJSON(w, http.StatusOK, Ack{Status: "ignored"})
	return state.PlaybackSpec{}, false
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxControlBody))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
