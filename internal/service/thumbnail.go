package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"mime/multipart"
	"path"
	"strings"

	"lectern/internal/models"
	"lectern/internal/observability"
	"lectern/internal/storage"
	"lectern/internal/validation"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	ThumbnailMaxWidth  = 1280
	ThumbnailMaxHeight = 720
	JPEGQuality        = 82
	WebPQuality        = 70

	thumbnailPrefix = "thumbnails"
)

// ThumbnailProcessor validates, resizes and stores course and video thumbnails.
type ThumbnailProcessor struct {
	store  storage.Store
	policy validation.UploadPolicy
}

func NewThumbnailProcessor(store storage.Store, policy validation.UploadPolicy) *ThumbnailProcessor {
	return &ThumbnailProcessor{store: store, policy: policy}
}

// ThumbnailObjectKey maps a public thumbnail key to its storage key.
// format "webp" selects the WebP variant.
func ThumbnailObjectKey(key, format string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "/\\") || path.Ext(key) != ".jpg" {
		return "", models.NewNotFoundError("Thumbnail", key)
	}
	if strings.EqualFold(format, "webp") {
		key = strings.TrimSuffix(key, ".jpg") + ".webp"
	}
	return path.Join(thumbnailPrefix, key), nil
}

// Process validates the upload and stores a JPEG plus a WebP variant. It
// returns the public key of the JPEG.
func (p *ThumbnailProcessor) Process(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	span, ctx := observability.NewSpan(ctx, "thumbnail.process", attribute.String("upload.filename", fh.Filename))
	defer span.End()

	info, err := validation.InspectMultipart(fh)
	if err != nil {
		span.SetError(err)
		return "", models.NewValidationError("Could not read uploaded file")
	}
	if err := p.policy.Check(validation.KindImage, info); err != nil {
		return "", rejectUpload(err)
	}

	f, err := fh.Open()
	if err != nil {
		span.SetError(err)
		return "", models.NewInternalError(err)
	}
	defer func() { _ = f.Close() }()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	resized := resizeToFit(decoded, ThumbnailMaxWidth, ThumbnailMaxHeight)

	jpgBytes, err := encodeJPEG(resized, JPEGQuality)
	if err != nil {
		span.SetError(err)
		return "", models.NewInternalError(err)
	}
	webpBytes, err := encodeWebP(resized, WebPQuality)
	if err != nil {
		span.SetError(err)
		return "", models.NewInternalError(err)
	}

	key := uuid.NewString() + ".jpg"
	jpgKey, _ := ThumbnailObjectKey(key, "jpg")
	webpKey, _ := ThumbnailObjectKey(key, "webp")

	if err := p.store.Put(ctx, jpgKey, bytes.NewReader(jpgBytes), int64(len(jpgBytes)), "image/jpeg"); err != nil {
		span.SetError(err)
		return "", models.NewInternalError(fmt.Errorf("store thumbnail: %w", err))
	}
	if err := p.store.Put(ctx, webpKey, bytes.NewReader(webpBytes), int64(len(webpBytes)), "image/webp"); err != nil {
		_ = p.store.Delete(ctx, jpgKey)
		span.SetError(err)
		return "", models.NewInternalError(fmt.Errorf("store thumbnail: %w", err))
	}
	b := resized.Bounds()
	span.AddAttributes(attribute.Int("thumbnail.width", b.Dx()), attribute.Int("thumbnail.height", b.Dy()))
	return key, nil
}

// Remove deletes both variants of a thumbnail. Missing objects are ignored.
func (p *ThumbnailProcessor) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	for _, format := range []string{"jpg", "webp"} {
		if objKey, err := ThumbnailObjectKey(key, format); err == nil {
			_ = p.store.Delete(ctx, objKey)
		}
	}
}

// Open returns the stored thumbnail variant.
func (p *ThumbnailProcessor) Open(ctx context.Context, key, format string) (*storage.Object, error) {
	objKey, err := ThumbnailObjectKey(key, format)
	if err != nil {
		return nil, err
	}
	obj, err := p.store.Open(ctx, objKey)
	if err != nil {
		return nil, storageError(err, "Thumbnail", key)
	}
	return obj, nil
}

// resizeToFit scales src down to fit within maxWidth×maxHeight, keeping the aspect ratio.
func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
