package service

import (
	"testing"

	"lectern/internal/config"
	"lectern/internal/events"
	"lectern/internal/repository"
	"lectern/internal/storage"
	"lectern/internal/testutil"
	"lectern/internal/validation"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	db        *gorm.DB
	store     *testutil.RecordingStore
	published *events.Recorder

	users    repository.UserRepository
	courses  repository.CourseRepository
	access   repository.AccessRepository
	settings repository.SettingRepository

	audit   *AuditService
	thumbs  *ThumbnailProcessor
	course  *CourseService
	video   *VideoService
	stream  *StreamService
	request *RequestService
	grant   *GrantService
	review  *ReviewService
	news    *NewsService
	setting *SettingsService
	userSvc *UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		db:        db,
		store:     testutil.NewRecordingStore(local),
		published: &events.Recorder{},
		users:     repository.NewUserRepository(db),
		courses:   repository.NewCourseRepository(db),
		access:    repository.NewAccessRepository(db),
		settings:  repository.NewSettingRepository(db),
	}
	policy := validation.UploadPolicy{MaxVideoBytes: 1 << 20, MaxImageBytes: 1 << 20}
	h.audit = NewAuditService(repository.NewAuditRepository(db), h.published)
	h.thumbs = NewThumbnailProcessor(h.store, policy)
	h.course = NewCourseService(h.courses, h.access, h.thumbs, h.audit)
	h.video = NewVideoService(h.courses, h.store, policy, h.thumbs, h.audit)
	h.stream = NewStreamService(h.courses, h.access, h.store)
	h.request = NewRequestService(h.access, h.courses, h.audit)
	h.grant = NewGrantService(h.access, h.users, h.courses, h.audit)
	h.review = NewReviewService(repository.NewReviewRepository(db), h.courses, h.access, h.settings, h.audit)
	h.news = NewNewsService(repository.NewNewsRepository(db), h.audit)
	h.setting = NewSettingsService(h.settings, h.audit)
	h.userSvc = NewUserService(h.users, h.audit)
	return h
}

func testConfig() *config.Config {
	return &config.Config{
		Env:         "test",
		JWTSecret:   "test-secret-key-for-lectern-0123456789",
		JWTTTLHours: 1,
		AdminEmails: "boss@example.com",
	}
}
