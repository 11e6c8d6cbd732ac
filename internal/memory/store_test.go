package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/shellagent/internal/models"
	"github.com/harrison/shellagent/internal/similarity"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(intent, command string, ok bool, output string) models.CommandRecord {
	return models.CommandRecord{Intent: intent, Command: command, Success: ok, Output: output}
}

func TestOpen_ColdStartCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does", "not", "exist")
	s := openTestStore(t, dir)

	assert.Equal(t, filepath.Join(dir, DBFileName), s.Path())
	assert.FileExists(t, s.Path())

	matches, err := s.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestMigrations(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	v, err := s.GetLatestVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	// Reopening applies nothing new and does not fail.
	again := openTestStore(t, dir)
	v, err = again.GetLatestVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestPersistThenQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)

	require.NoError(t, s.Persist(ctx, record("list files", "ls", true, "a.txt\nb.txt")))

	matches, err := s.Query(ctx, "list files", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ls", matches[0].Record.Command)
	assert.Equal(t, "list files", matches[0].Record.Intent)
	assert.Equal(t, "a.txt\nb.txt", matches[0].Record.Output)
	assert.True(t, matches[0].Record.Success)
	assert.NotZero(t, matches[0].Record.ID)
}

func TestQuery_OrderedByDistance(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)

	require.NoError(t, s.Persist(ctx, record("show disk usage", "df -h", true, "Filesystem Size")))
	require.NoError(t, s.Persist(ctx, record("list files", "ls", true, "a.txt")))
	require.NoError(t, s.Persist(ctx, record("count lines in a file", "wc -l f", true, "3 f")))

	matches, err := s.Query(ctx, "list files", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "ls", matches[0].Record.Command)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Score, matches[i].Score)
	}

	top, err := s.Query(ctx, "list files", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "ls", top[0].Record.Command)
}

func TestQuery_NonPositiveK(t *testing.T) {
	s := openTestStore(t, InMemory)
	require.NoError(t, s.Persist(context.Background(), record("list files", "ls", true, "")))

	matches, err := s.Query(context.Background(), "list files", 0)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestPersist_AppendsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)

	rec := record("list files", "ls", true, "a.txt")
	require.NoError(t, s.Persist(ctx, rec))
	require.NoError(t, s.Persist(ctx, rec))

	history, err := s.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	matches, err := s.Query(ctx, "list files", 3)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestQuery_FiltersNonHistoryEntries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)

	require.NoError(t, s.AddDocument(ctx, "note", "list files is usually ls"))
	require.NoError(t, s.Persist(ctx, record("show disk usage", "df -h", true, "")))

	matches, err := s.Query(ctx, "list files", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "df -h", matches[0].Record.Command)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Documents)
}

func TestAddDocument_RequiresType(t *testing.T) {
	s := openTestStore(t, InMemory)
	assert.Error(t, s.AddDocument(context.Background(), "", "text"))
}

func TestPersist_LongOutputIsChunked(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)

	long := strings.Repeat("line of output\n", 300)
	require.NoError(t, s.Persist(ctx, record("print a lot", "yes | head -300", true, long)))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Records)
	assert.Greater(t, st.Entries, 1)

	matches, err := s.Query(ctx, "print a lot", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1, "chunks of one record collapse into one match")
	assert.Equal(t, long, matches[0].Record.Output)
}

func TestStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, record("list files", "ls", true, "a.txt")))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, dir)
	matches, err := reopened.Query(ctx, "list files", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ls", matches[0].Record.Command)
}

func TestPersist_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.Persist(ctx, record(fmt.Sprintf("intent %d", n), fmt.Sprintf("echo %d", n), true, "")))
			_, err := s.Query(ctx, "intent", 3)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Records)
	assert.Equal(t, 10, st.Successes)
}

func TestHistoryAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)

	require.NoError(t, s.Persist(ctx, record("list files", "ls", true, "")))
	require.NoError(t, s.Persist(ctx, record("delete ghost", "rm ghost.txt", false, "No such file")))

	history, err := s.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "rm ghost.txt", history[0].Command, "newest first")
	assert.False(t, history[0].Success)

	found, err := s.Search(ctx, "ghost", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "delete ghost", found[0].Intent)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Records)
	assert.Equal(t, 1, st.Successes)
	assert.False(t, st.LastRecord.IsZero())
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}
func (failingEmbedder) Dimensions() int { return 0 }
func (failingEmbedder) Name() string    { return "failing" }

type recordingLogger struct {
	mu   sync.Mutex
	warn []string
}

func (l *recordingLogger) LogDebug(string) {}
func (l *recordingLogger) LogWarn(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn = append(l.warn, m)
}

func TestQuery_EmbedderFailureDegrades(t *testing.T) {
	log := &recordingLogger{}
	s, err := Open(context.Background(), Options{Dir: InMemory, Embedder: failingEmbedder{}, Logger: log})
	require.NoError(t, err)
	defer s.Close()

	matches, err := s.Query(context.Background(), "list files", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Len(t, log.warn, 1)

	err = s.Persist(context.Background(), record("list files", "ls", true, ""))
	assert.Error(t, err)
}

func TestQuery_SkipsEntriesFromOtherEmbedders(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	small, err := Open(ctx, Options{Dir: dir, Embedder: similarity.NewHashEmbedder(32)})
	require.NoError(t, err)
	require.NoError(t, small.Persist(ctx, record("list files", "ls", true, "")))
	require.NoError(t, small.Close())

	big := openTestStore(t, dir)
	matches, err := big.Query(ctx, "list files", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// renamedEmbedder produces hash vectors under another embedder's name.
type renamedEmbedder struct {
	*similarity.HashEmbedder
	name string
}

func (e renamedEmbedder) Name() string { return e.name }

func TestQuery_SkipsSameSizedEntriesFromOtherEmbedders(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	other, err := Open(ctx, Options{Dir: dir, Embedder: renamedEmbedder{similarity.NewHashEmbedder(similarity.DefaultHashDimensions), "ollama:other"}})
	require.NoError(t, err)
	require.NoError(t, other.Persist(ctx, record("delete everything", "rm -rf ./build", true, "")))
	require.NoError(t, other.Close())

	s := openTestStore(t, dir)
	matches, err := s.Query(ctx, "list files", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, s.Persist(ctx, record("list files", "ls", true, "")))
	matches, err = s.Query(ctx, "list files", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ls", matches[0].Record.Command)
}

func TestQuery_RanksEntriesWithoutEmbedderName(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)
	require.NoError(t, s.Persist(ctx, record("list files", "ls", true, "")))

	_, err := s.db.ExecContext(ctx, `UPDATE entries SET embedder = ''`)
	require.NoError(t, err)

	matches, err := s.Query(ctx, "list files", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ls", matches[0].Record.Command)
}

func TestSearch_WildcardsMatchLiterally(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, InMemory)

	require.NoError(t, s.Persist(ctx, record("show disk usage", "df -h", true, "")))
	require.NoError(t, s.Persist(ctx, record("find files 50% full", "du -sh .", true, "")))
	require.NoError(t, s.Persist(ctx, record("print user id", "echo $UID", true, "")))
	require.NoError(t, s.Persist(ctx, record("list dir_a", `ls dir_a\b`, true, "")))

	tests := []struct {
		term string
		want []string
	}{
		{"50%", []string{"du -sh ."}},
		{"%", []string{"du -sh ."}},
		{"_", []string{`ls dir_a\b`}},
		{`\`, []string{`ls dir_a\b`}},
		{"s_o", nil},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			found, err := s.Search(ctx, tt.term, 10)
			require.NoError(t, err)
			var got []string
			for _, rec := range found {
				got = append(got, rec.Command)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMigrations_AddEmbedderColumn(t *testing.T) {
	s := openTestStore(t, InMemory)

	var n int
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM pragma_table_info('entries') WHERE name = 'embedder'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, m := range migrations {
		assert.True(t, m.SQL != "" || m.Apply != nil, "migration %d does nothing", m.Version)
	}
}

func TestQuery_DatabaseFaultIsEscalated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newStore(db, Options{})
	mock.ExpectQuery("SELECT e.id").WillReturnError(errors.New("disk I/O error"))

	matches, err := s.Query(context.Background(), "list files", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreFault)
	assert.NotNil(t, matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_ParsesLegacyEntryText(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newStore(db, Options{Embedder: similarity.NewHashEmbedder(8)})
	vec, _ := similarity.NewHashEmbedder(8).Embed(context.Background(), "list files")
	embedding, err := json.Marshal(vec)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "record_id", "type", "content", "embedding", "metadata", "embedder",
		"intent", "command", "output", "success", "created_at"}).
		AddRow(7, nil, models.HistoryType, "用户请求: list files - 执行命令: ls - 执行结果: 成功", string(embedding),
			`{"type":"shell_history"}`, "", nil, nil, nil, nil, nil)
	mock.ExpectQuery("SELECT e.id").WillReturnRows(rows)

	matches, err := s.Query(context.Background(), "list files", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ls", matches[0].Record.Command)
	assert.Equal(t, "list files", matches[0].Record.Intent)
	assert.True(t, matches[0].Record.Success)
	assert.InDelta(t, 0, matches[0].Score, 1e-6)
}

func TestPersist_InsertFaultIsEscalated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newStore(db, Options{})
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").WillReturnError(errors.New("database disk image is malformed"))
	mock.ExpectRollback()

	err = s.Persist(context.Background(), record("list files", "ls", true, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreFault)
	assert.NoError(t, mock.ExpectationsWereMet())
}
