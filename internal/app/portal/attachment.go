package portal

import (
	"os"
	"path/filepath"
	"strings"

	"nyscmate/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the largest clearance letter accepted, in megabytes.
	MaxAttachmentSizeMB = 5

	// MaxAttachmentSize is MaxAttachmentSizeMB in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024
)

// AllowedMIMETypes are the content types a clearance letter may have.
var AllowedMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// ExtToMIME maps accepted file extensions to their content type.
var ExtToMIME = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Attachment is a clearance letter ready to be sent.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// Size returns the attachment length in bytes.
func (a *Attachment) Size() int64 {
	return int64(len(a.Data))
}

// Validate checks the attachment's size and type.
func (a *Attachment) Validate() *errs.CustomError {
	if err := ValidateFileSize(a.Size()); err != nil {
		return err
	}
	return ValidateFileType(a.Name, a.MimeType)
}

// LoadAttachment reads the file at path, deriving the content type from its extension.
func LoadAttachment(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParams, err).WithMessage("Cannot read " + path)
	}
	if err := ValidateFileSize(info.Size()); err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	mime, ok := ExtToMIME[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return nil, unsupportedType()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParams, err).WithMessage("Cannot read " + path)
	}

	a := &Attachment{Name: name, MimeType: mime, Data: data}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ValidateFileSize checks that a file is non-empty and within MaxAttachmentSize.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams).WithMessage("The clearance letter is empty.")
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrRequestEntityTooLarge)
	}

	return nil
}

// ValidateFileType checks that the file name and MIME type are allowed and agree with each other.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return unsupportedType()
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 {
		return unsupportedType()
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok || expectedMIME != lowerMimeType {
		return unsupportedType()
	}

	return nil
}

func unsupportedType() *errs.CustomError {
	return errs.NewError(errs.ErrUnsupportedMediaType).WithMessage("Upload the letter as a PDF, JPG or PNG file.")
}
