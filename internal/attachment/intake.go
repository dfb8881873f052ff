package attachment

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matthewbaird/listingform/internal/types"
)

// DefaultMaxSize is the per-file ceiling applied when none is configured.
const DefaultMaxSize int64 = 10 << 20

// ImageTypes is the MIME allow-list for listing photos.
var ImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// DocumentTypes is the MIME allow-list for supporting documents.
var DocumentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"image/jpeg",
	"image/png",
}

// IntakeError describes one file refused at upload time. Rejections are
// reported per file; accepted files in the same batch still go through.
type IntakeError struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

func (e IntakeError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// policy is an intake allow-list plus a size ceiling.
type policy struct {
	types   []string
	maxSize int64
}

func (p policy) check(f *types.File) *IntakeError {
	if f == nil {
		return &IntakeError{Reason: "missing file"}
	}
	mime := strings.ToLower(strings.TrimSpace(f.Type))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !slices.Contains(p.types, mime) {
		return &IntakeError{File: f.Name, Reason: fmt.Sprintf("file type %q is not allowed", f.Type)}
	}
	if f.Size > p.maxSize {
		return &IntakeError{File: f.Name, Reason: fmt.Sprintf("file exceeds the %d MB limit", p.maxSize>>20)}
	}
	return nil
}
