package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"school-portal-be/internal/academic"
	"school-portal-be/internal/entity"
	"school-portal-be/internal/model"
	"school-portal-be/internal/pkg/logger"
	"school-portal-be/internal/repository/memory"
	"school-portal-be/internal/repository/unitofwork"
	"school-portal-be/pkg/events"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeDirectory struct {
	users    map[uuid.UUID]academic.UserProfile
	classes  map[uuid.UUID]*academic.ClassRoster
	subjects map[uuid.UUID][]uuid.UUID
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:    map[uuid.UUID]academic.UserProfile{},
		classes:  map[uuid.UUID]*academic.ClassRoster{},
		subjects: map[uuid.UUID][]uuid.UUID{},
	}
}

func (d *fakeDirectory) addUser(name, role string) uuid.UUID {
	id := uuid.New()
	d.users[id] = academic.UserProfile{Id: id, FullName: name, Role: role}
	return id
}

func (d *fakeDirectory) ResolveClassRoster(ctx context.Context, classId uuid.UUID) (*academic.ClassRoster, error) {
	roster, ok := d.classes[classId]
	if !ok {
		return nil, academic.ErrClassNotFound
	}
	return roster, nil
}

func (d *fakeDirectory) ResolveSubjectTeachers(ctx context.Context, subjectId uuid.UUID) ([]uuid.UUID, error) {
	teachers, ok := d.subjects[subjectId]
	if !ok {
		return nil, academic.ErrSubjectNotFound
	}
	return teachers, nil
}

func (d *fakeDirectory) FindUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]academic.UserProfile, error) {
	out := make(map[uuid.UUID]academic.UserProfile, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) ofType(eventType events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type testEnv struct {
	db        *gorm.DB
	directory *fakeDirectory
	publisher *recordingPublisher
	chats     IChatService
	messages  IMessageService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Chat{}, &model.ChatParticipant{}, &model.Message{}))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	directory := newFakeDirectory()
	publisher := &recordingPublisher{}
	factory := unitofwork.NewRepositoryFactory(db)
	log := logger.NewNopLogger()

	return &testEnv{
		db:        db,
		directory: directory,
		publisher: publisher,
		chats:     NewChatService(factory, NewChatRegistry(directory), directory, publisher, log),
		messages: NewMessageService(factory, directory, memory.NewIdempotencyRepository(time.Minute), publisher, log,
			MessageServiceConfig{DefaultPageLimit: 20}),
	}
}

func (e *testEnv) principal(userId uuid.UUID) entity.Principal {
	return entity.Principal{UserId: userId, Role: "student"}
}

func (e *testEnv) countRows(t *testing.T, table interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(table).Where(query, args...).Count(&n).Error)
	return n
}
