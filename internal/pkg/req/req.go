/*
Package req provides helper functions for HTTP request parsing and data binding.

It parses JSON and multipart bodies for the development server and maps malformed or oversized
input to the errs taxonomy, so handlers only see well-formed data.
*/
package req

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"nyscmate/internal/pkg/errs"
)

const (
	// MaxFormMemory is the amount of a multipart body kept in memory; the rest spills to disk.
	MaxFormMemory int64 = 8 << 20

	// MaxRequestFileSize bounds a whole multipart body, attachment included.
	MaxRequestFileSize int64 = 6 << 20

	// MaxJSONBodySize bounds JSON bodies.
	MaxJSONBodySize int64 = 1 << 20
)

// BindJSON decodes the JSON body of r into dst. Unknown fields are rejected.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// SetupMultipart parses a multipart (or URL-encoded) form, bounding the body size.
func SetupMultipart(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestFileSize)

	if err := r.ParseMultipartForm(MaxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}

// FormFile returns the named file of a parsed multipart form, or nil when it was not sent.
func FormFile(r *http.Request, name string) (multipart.File, *multipart.FileHeader, *errs.CustomError) {
	f, hdr, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errs.NewError(errs.ErrFormParseFailed)
	}
	return f, hdr, nil
}

// PathID parses the named chi URL parameter as a positive integer id.
func PathID(r *http.Request, name string) (int64, *errs.CustomError) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return id, nil
}
