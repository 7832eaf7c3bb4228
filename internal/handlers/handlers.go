package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/animegan-api/internal/failure"
	"github.com/Brownie44l1/animegan-api/internal/log"
	"github.com/Brownie44l1/animegan-api/internal/pipeline"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

type Handler struct {
	adapter   *pipeline.Adapter
	dir       string
	maxUpload int64
}

func NewHandler(adapter *pipeline.Adapter, dir string, maxUpload int64) *Handler {
	return &Handler{
		adapter:   adapter,
		dir:       dir,
		maxUpload: maxUpload,
	}
}

// Routes wires every endpoint behind CORS.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", h.Health)
	r.Post("/predict", h.Predict)
	r.Post("/predict/image", h.PredictFromImage)
	r.Get("/outputs/{name}", h.Output)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type predictResponse struct {
	pipeline.Result
	URL string `json:"url,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Predict takes a raw B, G, R, A pixel buffer as the request body with its
// dimensions in the width and height query parameters.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	width, err := positiveInt(r, "width")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := positiveInt(r, "height")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	h.run(w, tensor.PixelBuffer{Pix: body, Width: width, Height: height})
}

// PredictFromImage decodes an uploaded png, jpeg or webp and runs it
// through the same path as a raw buffer.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse form: %w", err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no image file provided, use 'image' as the form field name"))
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid image format, supported: png, jpeg, webp"))
		return
	}

	log.Debug("received upload", "file", header.Filename, "size", header.Size, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	h.run(w, tensor.BufferFromImage(img))
}

func (h *Handler) run(w http.ResponseWriter, buf tensor.PixelBuffer) {
	res := h.adapter.Run(buf, h.dir)
	if !res.OK() {
		status := http.StatusInternalServerError
		if res.Failure.Kind == failure.Precondition {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, predictResponse{Result: res})
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Result: res,
		URL:    "/outputs/" + filepath.Base(res.Path),
	})
}

// Output serves a previously generated image by file name.
func (h *Handler) Output(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.adapter.IsOutput(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, filepath.Join(h.dir, name))
}

func positiveInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("query parameter %s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("write response", "error", err)
	}
}

// writeError reports a request that never reached the pipeline in the same
// shape as a pipeline failure.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, predictResponse{Result: pipeline.Result{Failure: &pipeline.Failure{
		Kind:    failure.Precondition,
		Stage:   "request",
		Message: err.Error(),
	}}})
}
