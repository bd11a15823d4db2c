package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Tutortoise/voice-screening-service/analysis"
	"github.com/Tutortoise/voice-screening-service/audio"
	"github.com/Tutortoise/voice-screening-service/classifier"
	"github.com/Tutortoise/voice-screening-service/models"
	"github.com/Tutortoise/voice-screening-service/spectrogram"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// AppState is shared by every handler.
type AppState struct {
	Service   *analysis.Service
	Renderer  *spectrogram.Renderer
	Pool      *classifier.SessionPool
	Admission *semaphore.Weighted
	Logger    *zap.Logger

	CORSOrigin       string
	MaxUploadBytes   int64
	MaxConcurrent    int64
	AdmissionTimeout time.Duration
}

type AnalysisResponse struct {
	Prediction        string                   `json:"prediction"`
	Probability       float64                  `json:"probability"`
	ProbabilitySource models.ProbabilitySource `json:"probabilitySource"`
	Features          models.FeatureBreakdown  `json:"features"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func newAnalysisResponse(res *models.ClassificationResult) AnalysisResponse {
	return AnalysisResponse{
		Prediction:        res.Prediction,
		Probability:       res.Probability.Value,
		ProbabilitySource: res.Probability.Source,
		Features:          res.Features,
	}
}

// Uploads larger than this spill to temporary files while parsing.
const multipartMemory = 10 << 20

// upload is a file received from a multipart request.
type upload struct {
	Filename string
	Data     []byte
}

// uploadError carries the status and message for a rejected upload.
type uploadError struct {
	status  int
	code    string
	message string
}

func (e *uploadError) Error() string { return e.message }

func (s *AppState) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	if s.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &uploadError{http.StatusRequestEntityTooLarge, CodeInvalidRequest, MsgUploadTooLarge}
		}
		return nil, &uploadError{http.StatusBadRequest, CodeInvalidRequest, MsgNoFilePart}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// A part without a filename is parsed as a plain form value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			return nil, &uploadError{http.StatusBadRequest, CodeInvalidRequest, MsgNoFileSelected}
		}
		return nil, &uploadError{http.StatusBadRequest, CodeInvalidRequest, MsgNoFilePart}
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if header.Filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, &uploadError{http.StatusBadRequest, CodeInvalidRequest, MsgNoFileSelected}
	}
	if !audio.Allowed(filename) {
		return nil, &uploadError{http.StatusBadRequest, CodeInvalidFile, MsgInvalidFileType}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &uploadError{http.StatusBadRequest, CodeInvalidRequest, "Error reading file: " + err.Error()}
	}
	return &upload{Filename: filename, Data: data}, nil
}

// admit takes a slot from the admission semaphore. The returned release must
// be called once the request is done.
func (s *AppState) admit(ctx context.Context) (func(), bool) {
	if s.Admission == nil {
		return func() {}, true
	}
	if s.AdmissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AdmissionTimeout)
		defer cancel()
	}
	if err := s.Admission.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	return func() { s.Admission.Release(1) }, true
}

func newRequestContext(w http.ResponseWriter, r *http.Request) (context.Context, string) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	return analysis.WithRequestID(r.Context(), requestID), requestID
}

func handleUpload(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, requestID := newRequestContext(w, r)
		logger := state.Logger.With(zap.String("request_id", requestID))
		logger.Debug("Upload received", zap.String("contentType", r.Header.Get("Content-Type")))

		up, err := state.readUpload(w, r)
		if err != nil {
			sendUploadError(w, logger, err)
			return
		}

		release, ok := state.admit(ctx)
		if !ok {
			sendErrorResponse(w, CodeBusy, MsgBusy, http.StatusServiceUnavailable)
			return
		}
		defer release()

		out := state.Service.AnalyzeUpload(ctx, up.Data, up.Filename)
		if !out.OK() {
			status, message := http.StatusInternalServerError, out.Failure.Message
			switch out.Failure.Kind {
			case analysis.KindDecodeError:
				status = http.StatusBadRequest
			case analysis.KindModelUnavailable:
				message = MsgModelNotLoaded
			}
			sendErrorResponse(w, string(out.Failure.Kind), message, status)
			return
		}
		writeJSON(w, http.StatusOK, newAnalysisResponse(out.Result))
	}
}

func handleUploadOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleSpectrogram(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, requestID := newRequestContext(w, r)
		logger := state.Logger.With(zap.String("request_id", requestID))

		up, err := state.readUpload(w, r)
		if err != nil {
			sendUploadError(w, logger, err)
			return
		}

		release, ok := state.admit(ctx)
		if !ok {
			sendErrorResponse(w, CodeBusy, MsgBusy, http.StatusServiceUnavailable)
			return
		}
		defer release()

		signal, err := audio.Decode(up.Data, up.Filename)
		if err != nil {
			sendErrorResponse(w, string(analysis.KindDecodeError), err.Error(), http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		if err := state.Renderer.WritePNG(&buf, signal); err != nil {
			logger.Warn("Spectrogram rendering failed", zap.Error(err))
			sendErrorResponse(w, CodeRenderError, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func sendUploadError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var upErr *uploadError
	if !errors.As(err, &upErr) {
		upErr = &uploadError{http.StatusBadRequest, CodeInvalidRequest, err.Error()}
	}
	logger.Info("Rejected upload", zap.String("reason", upErr.message))
	sendErrorResponse(w, upErr.code, upErr.message, upErr.status)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// corsMiddleware allows the configured front end origin. Allowed methods are
// filled in by mux.CORSMethodMiddleware.
func corsMiddleware(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *AppState) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/upload", handleUpload(s)).Methods(http.MethodPost)
	r.HandleFunc("/upload", handleUploadOptions).Methods(http.MethodOptions)
	r.HandleFunc("/predict", handleUpload(s)).Methods(http.MethodPost)
	r.HandleFunc("/spectrogram", handleSpectrogram(s)).Methods(http.MethodPost)
	s.addMonitoringRoutes(r)

	r.Use(requestLogger(s.Logger))
	r.Use(mux.CORSMethodMiddleware(r))
	r.Use(corsMiddleware(s.CORSOrigin))
	return r
}
