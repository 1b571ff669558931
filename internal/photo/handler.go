package photo

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/photoslot/service/internal/config"
	"github.com/photoslot/service/internal/response"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

const cacheControl = "public, max-age=3600"

// Handler holds HTTP handlers for the image endpoints.
type Handler struct {
	svc            *Service
	logger         *slog.Logger
	publicBaseURL  string
	maxUploadBytes int64
}

// NewHandler creates a new photo Handler.
func NewHandler(svc *Service, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		logger:         logger,
		publicBaseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Upload godoc
//
//	@Summary		Upload image
//	@Description	Replace the stored image. Every previously stored object is deleted before the new one is written.
//	@Tags			image
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			photo	formData	file	true	"JPEG, PNG, GIF or WebP image"
//	@Param			key		formData	string	true	"Upload key"
//	@Success		200		{object}	response.UploadEnvelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	in, cleanup, err := readUploadForm(r)
	if err != nil {
		if isTooLarge(err) {
			response.TooLarge(w, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		h.logger.Error("parse upload form", "error", err)
		response.InternalError(w, err.Error())
		return
	}
	defer cleanup()

	res, err := h.svc.Upload(r.Context(), in)
	switch {
	case errors.Is(err, ErrUnauthorized):
		response.Unauthorized(w, "unauthorized")
		return
	case errors.Is(err, ErrNoFile):
		response.BadRequest(w, "no file uploaded")
		return
	case errors.Is(err, ErrUnsupportedMediaType):
		response.BadRequest(w, "invalid file type. Only JPEG, PNG, GIF, and WebP allowed.")
		return
	case err != nil:
		h.logger.Error("upload failed", "error", err)
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, response.UploadEnvelope{
		Success:  true,
		Filename: res.Filename,
		URL:      h.origin(r) + "/image",
		Message:  "Photo uploaded successfully!",
	})
}

// GetImage godoc
//
//	@Summary		Get current image
//	@Description	Stream the stored image with its recorded content type.
//	@Tags			image
//	@Produce		image/jpeg,image/png,image/gif,image/webp
//	@Success		200	{file}		binary
//	@Failure		404	{string}	string	"No image found"
//	@Failure		500	{string}	string	"Error retrieving image"
//	@Router			/image [get]
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.svc.Current(r.Context())
	switch {
	case errors.Is(err, ErrImageGone):
		response.NotFound(w, "Image not found")
		return
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "No image found")
		return
	case err != nil:
		h.logger.Error("retrieve image", "error", err)
		response.Text(w, http.StatusInternalServerError, "Error retrieving image: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// origin returns the externally visible scheme and host of the service.
func (h *Handler) origin(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// readUploadForm reads the key and photo fields from a multipart or
// URL-encoded body. A URL-encoded form never carries a file, so the service
// still rules on the key before reporting the missing photo.
func readUploadForm(r *http.Request) (UploadInput, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return UploadInput{}, noop, err
		}
		return UploadInput{Key: r.PostFormValue("key")}, noop, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return UploadInput{}, noop, err
	}
	in := UploadInput{Key: r.PostFormValue("key")}

	file, header, err := r.FormFile("photo")
	switch {
	case err == nil:
		in.File = &File{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Size:     header.Size,
			Content:  file,
		}
		return in, func() {
			_ = file.Close()
			_ = r.MultipartForm.RemoveAll()
		}, nil
	case errors.Is(err, http.ErrMissingFile):
		return in, func() { _ = r.MultipartForm.RemoveAll() }, nil
	default:
		_ = r.MultipartForm.RemoveAll()
		return UploadInput{}, noop, fmt.Errorf("open uploaded file: %w", err)
	}
}
