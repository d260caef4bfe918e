package upload

import (
	"errors"
	"mime/multipart"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/storage"
)

type UploadEndpoints struct {
	service *UploadService
}

func NewUploadEndpoints(service *UploadService) *UploadEndpoints {
	return &UploadEndpoints{service: service}
}

// Upload accepts a multipart form, resolves the category from the field
// name and request context, and stores the file.
func (e *UploadEndpoints) Upload(ctx *fasthttp.RequestCtx) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.Error("Invalid multipart form", fasthttp.StatusBadRequest)
		return
	}

	fieldName, header := pickFile(form)
	if header == nil {
		ctx.Error("No file provided", fasthttp.StatusBadRequest)
		return
	}

	hints := category.Hints{
		Route:   string(ctx.Path()),
		Referer: string(ctx.Request.Header.Peek("Referer")),
	}
	if override := formValue(form, "category"); override != "" {
		hints.Override = category.Category(strings.ToLower(override))
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = category.ContentTypeByName(header.Filename)
	}

	file, err := header.Open()
	if err != nil {
		ctx.Error("Failed to read upload", fasthttp.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := e.service.Upload(ctx, &Request{
		Category:         category.Resolve(fieldName, hints),
		FieldHint:        fieldName,
		OriginalFilename: header.Filename,
		ContentType:      contentType,
		SizeBytes:        header.Size,
	}, file)
	if err != nil {
		writeUploadError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusCreated)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(result); err != nil {
		log.Error().Err(err).Msg("[UPLOAD] Failed to encode response")
	}
}

// pickFile prefers the conventional "file" form field, then falls back to
// the first file field in name order so requests with a single custom field
// still work.
func pickFile(form *multipart.Form) (string, *multipart.FileHeader) {
	if headers := form.File["file"]; len(headers) > 0 {
		return "file", headers[0]
	}

	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if headers := form.File[name]; len(headers) > 0 {
			return name, headers[0]
		}
	}
	return "", nil
}

func formValue(form *multipart.Form, name string) string {
	if values := form.Value[name]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func writeUploadError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidType):
		ctx.Error("File type not allowed", fasthttp.StatusBadRequest)
	case errors.Is(err, storage.ErrTooLarge):
		ctx.Error("File too large", fasthttp.StatusRequestEntityTooLarge)
	case errors.Is(err, storage.ErrUnavailable):
		ctx.Error("Storage unavailable", fasthttp.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("[UPLOAD] Upload failed")
		ctx.Error("Internal server error", fasthttp.StatusInternalServerError)
	}
}
