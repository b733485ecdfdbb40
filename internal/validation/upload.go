package validation

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind selects the allow-lists and size ceiling applied to an upload.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// Stage names the check that rejected an upload.
type Stage string

const (
	StageExtension Stage = "extension"
	StageMIME      Stage = "mime"
	StageSize      Stage = "size"
	StageSignature Stage = "signature"
)

const (
	DefaultVideoMaxBytes int64 = 500 << 20
	DefaultImageMaxBytes int64 = 5 << 20

	// SignatureLen is how many leading bytes the signature check inspects.
	// It matches the mimetype detector's default read limit.
	SignatureLen = 3072
)

// UploadError reports the first failed check.
type UploadError struct {
	Stage   Stage
	Message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s check failed: %s", e.Stage, e.Message)
}

// AsUploadError extracts an UploadError from err.
func AsUploadError(err error) (*UploadError, bool) {
	var ue *UploadError
	ok := errors.As(err, &ue)
	return ue, ok
}

// FileInfo is what the validator knows about an uploaded file.
type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
	Head        []byte
}

var (
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".m4v": {}, ".mov": {}, ".webm": {}, ".mkv": {}, ".ogv": {},
	}
	imageExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	}
	videoMIMEs = map[string]struct{}{
		"video/mp4": {}, "video/x-m4v": {}, "video/quicktime": {},
		"video/webm": {}, "video/x-matroska": {}, "video/ogg": {},
	}
	imageMIMEs = map[string]struct{}{
		"image/jpeg": {}, "image/png": {}, "image/gif": {}, "image/webp": {},
	}
)

// UploadPolicy holds the size ceilings. Zero values fall back to defaults.
type UploadPolicy struct {
	MaxVideoBytes int64
	MaxImageBytes int64
}

func (p UploadPolicy) maxBytes(kind Kind) int64 {
	if kind == KindVideo {
		if p.MaxVideoBytes > 0 {
			return p.MaxVideoBytes
		}
		return DefaultVideoMaxBytes
	}
	if p.MaxImageBytes > 0 {
		return p.MaxImageBytes
	}
	return DefaultImageMaxBytes
}

// Check runs extension, MIME, size and signature checks in that order and
// stops at the first failure.
func (p UploadPolicy) Check(kind Kind, f FileInfo) error {
	extensions, mimes := imageExtensions, imageMIMEs
	if kind == KindVideo {
		extensions, mimes = videoExtensions, videoMIMEs
	}

	ext := strings.ToLower(filepath.Ext(f.Filename))
	if _, ok := extensions[ext]; !ok {
		return &UploadError{Stage: StageExtension, Message: fmt.Sprintf("extension %q is not allowed for %s uploads", ext, kind)}
	}

	ct := NormalizeContentType(f.ContentType)
	if _, ok := mimes[ct]; !ok {
		return &UploadError{Stage: StageMIME, Message: fmt.Sprintf("content type %q is not allowed for %s uploads", ct, kind)}
	}

	limit := p.maxBytes(kind)
	if f.Size <= 0 {
		return &UploadError{Stage: StageSize, Message: "file is empty"}
	}
	if f.Size > limit {
		return &UploadError{Stage: StageSize, Message: fmt.Sprintf("file exceeds %d MB", limit>>20)}
	}

	if detected, ok := sniffKind(kind, f.Head); !ok {
		return &UploadError{Stage: StageSignature, Message: fmt.Sprintf("file content (%s) is not a recognised %s format", detected, kind)}
	}
	return nil
}

// NormalizeContentType strips parameters and lowercases a MIME type.
func NormalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}

// ReadHead reads up to SignatureLen bytes from r.
func ReadHead(r io.Reader) ([]byte, error) {
	buf := make([]byte, SignatureLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// InspectMultipart builds a FileInfo from a multipart part, reading its
// leading bytes.
func InspectMultipart(fh *multipart.FileHeader) (FileInfo, error) {
	f, err := fh.Open()
	if err != nil {
		return FileInfo{}, err
	}
	defer func() { _ = f.Close() }()

	head, err := ReadHead(f)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Head:        head,
	}, nil
}

// detectedKinds lists the sniffed types accepted per kind. The detected type
// only has to be in the family, not equal to the declared content type.
var detectedKinds = map[Kind][]string{
	KindVideo: {
		"video/mp4", "video/x-m4v", "video/quicktime",
		"video/webm", "video/x-matroska", "video/ogg", "application/ogg",
	},
	KindImage: {"image/jpeg", "image/png", "image/gif", "image/webp"},
}

// sniffKind reports whether head looks like a file of the given kind.
func sniffKind(kind Kind, head []byte) (string, bool) {
	if len(head) == 0 {
		return "empty", false
	}
	detected := mimetype.Detect(head)
	for _, allowed := range detectedKinds[kind] {
		if detected.Is(allowed) {
			return detected.String(), true
		}
	}
	return detected.String(), false
}
