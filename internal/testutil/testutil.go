// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
	"sync/atomic"

	"lectern/internal/cache"
	"lectern/internal/database"
	"lectern/internal/models"
	"lectern/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// T is the subset of testing.TB the helpers need.
type T interface {
	Helper()
	Fatalf(string, ...any)
	Name() string
	Cleanup(func())
}

var dbSeq atomic.Int64

// OpenDB returns a migrated in-memory SQLite database private to the test.
// Redis is detached and the local cache is cleared so cached reads never
// leak between tests.
func OpenDB(t T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:lectern_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cache.SetClient(nil)
	cache.ResetLocal()
	t.Cleanup(func() {
		cache.ResetLocal()
		_ = sqlDB.Close()
	})
	return db
}

// CreateUser inserts a user with the given email.
func CreateUser(t T, db *gorm.DB, email string, admin bool) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, IsAdmin: admin}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateCourse inserts an active course. A nil price makes it free.
func CreateCourse(t T, db *gorm.DB, slug string, priceCents *int64) *models.Course {
	t.Helper()
	c := &models.Course{Title: slug, Slug: slug, PriceCents: priceCents, IsActive: true}
	if err := db.Omit("Videos").Create(c).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}

// CreateVideo inserts a video backed by key.
func CreateVideo(t T, db *gorm.DB, courseID uint, key string, size int64, free bool) *models.Video {
	t.Helper()
	v := &models.Video{
		CourseID:   courseID,
		Title:      key,
		StorageKey: key,
		MimeType:   "video/mp4",
		SizeBytes:  size,
		IsFree:     free,
	}
	if err := db.Omit("Course").Create(v).Error; err != nil {
		t.Fatalf("create video: %v", err)
	}
	return v
}

// Price returns a pointer to cents.
func Price(cents int64) *int64 {
	return &cents
}

// MP4Bytes returns n bytes starting with an ISO-BMFF ftyp box.
func MP4Bytes(n int) []byte {
	head := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00}
	out := make([]byte, n)
	copy(out, head)
	for i := len(head); i < n; i++ {
		out[i] = byte(i % 251)
	}
	return out
}

// TinyPNG encodes a w×h PNG.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, G: 40, B: 90, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// TinyJPEG encodes a w×h JPEG.
func TinyJPEG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// RecordingStore wraps a storage.Store and counts writes.
type RecordingStore struct {
	storage.Store

	mu   sync.Mutex
	puts []string
}

// NewRecordingStore wraps inner.
func NewRecordingStore(inner storage.Store) *RecordingStore {
	return &RecordingStore{Store: inner}
}

// Put records key and delegates.
func (s *RecordingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.puts = append(s.puts, key)
	s.mu.Unlock()
	return s.Store.Put(ctx, key, r, size, contentType)
}

// Puts returns the keys written so far.
func (s *RecordingStore) Puts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}
