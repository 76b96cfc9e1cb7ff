package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"groupcart/internal/config"
	"groupcart/internal/model"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return gormDB, mock
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// exercises the load-all/replace-all contract every backend must honour
func storeContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()

	_, err := store.Load(ctx, SnapshotGroups)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, store.Save(ctx, SnapshotGroups, []byte(`[{"id":"a"}]`)))
	require.NoError(t, store.Save(ctx, SnapshotGroups, []byte(`[{"id":"b"}]`)))

	data, err := store.Load(ctx, SnapshotGroups)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b"}]`, string(data))

	var rooms []model.Room
	found, err := LoadJSON(ctx, store, SnapshotGroups, &rooms)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, rooms, 1)
	assert.Equal(t, "b", rooms[0].ID)

	found, err = LoadJSON(ctx, store, SnapshotUsers, &rooms)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)

	storeContract(t, store)

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "groups.json", entries[0].Name())
	})

	t.Run("RejectsPathNames", func(t *testing.T) {
		assert.Error(t, store.Save(context.Background(), "../escape", []byte("{}")))
	})

	t.Run("CorruptSnapshot", func(t *testing.T) {
		require.NoError(t, store.Save(context.Background(), SnapshotAddresses, []byte("{not json")))
		var addrs map[string]model.Address
		_, err := LoadJSON(context.Background(), store, SnapshotAddresses, &addrs)
		assert.Error(t, err)
	})
}

func TestRedisStore(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewRedisStore(client, "gc:")

	storeContract(t, store)

	assert.True(t, mr.Exists("gc:groups"))
	assert.Equal(t, time.Duration(0), mr.TTL("gc:groups"))
}

func TestGormStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Save", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewGormStore(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `snapshots`.*ON DUPLICATE KEY UPDATE").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, store.Save(ctx, SnapshotNotifications, []byte(`[]`)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Load", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewGormStore(db)

		rows := sqlmock.NewRows([]string{"name", "payload", "updated_at"}).
			AddRow(SnapshotNotifications, []byte(`[{"id":"1"}]`), time.Now())
		mock.ExpectQuery("SELECT \\* FROM `snapshots` WHERE name = \\?").
			WillReturnRows(rows)

		data, err := store.Load(ctx, SnapshotNotifications)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"1"}]`, string(data))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LoadMissing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewGormStore(db)

		mock.ExpectQuery("SELECT \\* FROM `snapshots`").
			WillReturnRows(sqlmock.NewRows([]string{"name", "payload", "updated_at"}))

		_, err := store.Load(ctx, SnapshotUsers)
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("LoadError", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewGormStore(db)

		mock.ExpectQuery("SELECT \\* FROM `snapshots`").WillReturnError(errors.New("connection reset"))

		_, err := store.Load(ctx, SnapshotUsers)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSnapshotNotFound)
	})
}

func TestNewSnapshotStore(t *testing.T) {
	client, _ := setupRedis(t)
	db, _ := setupMockDB(t)

	store, err := NewSnapshotStore(config.StorageConfig{Driver: "file", Dir: t.TempDir()}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = NewSnapshotStore(config.StorageConfig{Driver: "redis"}, client, nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)

	store, err = NewSnapshotStore(config.StorageConfig{Driver: "mysql"}, nil, db)
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, store)

	_, err = NewSnapshotStore(config.StorageConfig{Driver: "redis"}, nil, nil)
	assert.Error(t, err)

	_, err = NewSnapshotStore(config.StorageConfig{Driver: "etcd"}, nil, nil)
	assert.Error(t, err)
}

// recordingStore captures writes and can be told to fail or stall
type recordingStore struct {
	mu     sync.Mutex
	writes map[string][][]byte
	fail   error
	gate   chan struct{}
}

func newRecordingStore() *recordingStore {
	return &recordingStore{writes: make(map[string][][]byte)}
}

func (s *recordingStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.writes[name]
	if len(w) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return w[len(w)-1], nil
}

func (s *recordingStore) Save(ctx context.Context, name string, payload []byte) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.writes[name] = append(s.writes[name], payload)
	return nil
}

func (s *recordingStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes[name])
}

func TestSnapshotter(t *testing.T) {
	t.Run("PersistsEncodedValue", func(t *testing.T) {
		store := newRecordingStore()
		s := NewSnapshotter(store)
		defer s.Close()

		rooms := []model.Room{{ID: "festive-123", Name: "Diwali"}}
		s.Persist(SnapshotGroups, rooms)
		// later mutation must not leak into the scheduled snapshot
		rooms[0].Name = "changed"
		s.Flush()

		var got []model.Room
		found, err := LoadJSON(context.Background(), store, SnapshotGroups, &got)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Diwali", got[0].Name)
	})

	t.Run("CoalescesBursts", func(t *testing.T) {
		store := newRecordingStore()
		store.gate = make(chan struct{})
		s := NewSnapshotter(store)

		s.Persist(SnapshotUsers, []string{"first"})
		// writer is now blocked on the gate with "first"; queue two more
		assert.Eventually(t, func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.writing
		}, time.Second, time.Millisecond)
		s.Persist(SnapshotUsers, []string{"second"})
		s.Persist(SnapshotUsers, []string{"third"})

		close(store.gate)
		s.Close()

		assert.Equal(t, 2, store.count(SnapshotUsers))
		data, _ := store.Load(context.Background(), SnapshotUsers)
		assert.JSONEq(t, `["third"]`, string(data))
	})

	t.Run("FailuresAreReported", func(t *testing.T) {
		store := newRecordingStore()
		store.fail = errors.New("disk full")

		var mu sync.Mutex
		var failed []string
		s := NewSnapshotter(store, WithErrorHook(func(name string, err error) {
			mu.Lock()
			failed = append(failed, name)
			mu.Unlock()
		}))

		s.Persist(SnapshotAddresses, map[string]string{"r": "x"})
		s.Close()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{SnapshotAddresses}, failed)
	})

	t.Run("UnencodableValue", func(t *testing.T) {
		var failed int
		s := NewSnapshotter(newRecordingStore(), WithErrorHook(func(string, error) { failed++ }))
		defer s.Close()

		s.Persist("bad", make(chan int))
		assert.Equal(t, 1, failed)
	})

	t.Run("PersistAfterClose", func(t *testing.T) {
		store := newRecordingStore()
		s := NewSnapshotter(store)
		s.Close()
		s.Close()

		s.Persist(SnapshotGroups, []int{1})
		assert.Equal(t, 0, store.count(SnapshotGroups))
	})
}
