package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/config"
	"github.com/Veraticus/classbot/internal/ledger"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/roster"
	"github.com/Veraticus/classbot/internal/sheets"
	"github.com/Veraticus/classbot/internal/storage"
	"github.com/Veraticus/classbot/internal/task"
)

type result struct {
	err error
	out string
}

// run executes the CLI against a JSON store in dataDir.
func run(t *testing.T, dataDir, stdin string, args ...string) result {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--storage-driver", "json",
		"--storage-path", dataDir,
	}, args...))

	err := cmd.ExecuteContext(context.Background())
	return result{err: err, out: out.String()}
}

// seed creates class Kelas-3A in group G1 with one student, one deposit and
// a task due in three days with reminders at 3 and 1 days.
func seed(t *testing.T, dataDir string) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewFileStore(dataDir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	r := roster.New(store, time.Now)
	class, err := r.InitClass(ctx, "Kelas-3A", "G1")
	require.NoError(t, err)
	andi, err := r.RegisterStudent(ctx, class.ID, "6281234567890", "Andi", "andi@lid")
	require.NoError(t, err)

	_, err = ledger.NewEngine(store, time.Now).AddCashRecord(ctx, andi.ID, 25000)
	require.NoError(t, err)

	deadline := time.Now().In(loc).AddDate(0, 0, 3).Format(model.DeadlineLayout)
	_, err = task.NewRegistry(store, loc, time.Now).AddTask(ctx, class.ID, "Quiz Basis Data", deadline, "", "3,1")
	require.NoError(t, err)
}

func readCount(t *testing.T, driver, path string, c model.Collection) int {
	t.Helper()
	store, err := storage.Open(context.Background(), driver, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	records, err := store.Read(context.Background(), c)
	require.NoError(t, err)
	return len(records)
}

func TestVersion(t *testing.T) {
	res := run(t, t.TempDir(), "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "classbot dev\n", res.out)
}

func TestInvalidConfig(t *testing.T) {
	res := run(t, t.TempDir(), "", "--log-level", "verbose", "store", "status")
	assert.ErrorIs(t, res.err, common.ErrInvalidConfig)
}

func TestStoreStatus(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	res := run(t, dir, "", "store", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Driver: json")
	assert.Regexp(t, `classes\s+1`, res.out)
	assert.Regexp(t, `cash_records\s+1`, res.out)
	assert.Regexp(t, `reminder_log\s+0`, res.out)
}

func TestStoreMigrate(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)
	dbPath := filepath.Join(t.TempDir(), "classbot.db")

	res := run(t, dir, "", "store", "migrate", "--to", "sqlite", "--to-path", dbPath)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Copied 4 records in 6 collections")

	assert.Equal(t, 1, readCount(t, storage.DriverSQLite, dbPath, model.CollectionClasses))
	assert.Equal(t, 1, readCount(t, storage.DriverSQLite, dbPath, model.CollectionTasks))

	res = run(t, dir, "", "store", "migrate", "--to", "sqlite", "--to-path", dbPath)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--force")

	res = run(t, dir, "", "store", "migrate", "--to", "sqlite", "--to-path", dbPath, "--force")
	require.NoError(t, res.err)
}

func TestStoreMigrateRejectsSameStore(t *testing.T) {
	dir := t.TempDir()
	res := run(t, dir, "", "store", "migrate", "--to", "json", "--to-path", dir)
	assert.Error(t, res.err)
}

func TestCheckpointLifecycle(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	res := run(t, dir, "", "checkpoint", "create", "--tag", "awal", "-d", "sebelum semester")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Created checkpoint awal")

	res = run(t, dir, "", "checkpoint", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "awal")
	assert.Contains(t, res.out, "manual")

	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	_, err = roster.New(store, time.Now).InitClass(context.Background(), "Kelas-3B", "G2")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Equal(t, 2, readCount(t, storage.DriverJSON, dir, model.CollectionClasses))

	res = run(t, dir, "n\n", "checkpoint", "restore", "awal")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Restore cancelled.")
	assert.Equal(t, 2, readCount(t, storage.DriverJSON, dir, model.CollectionClasses))

	res = run(t, dir, "y\n", "checkpoint", "restore", "awal")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Restored from checkpoint awal")
	assert.Equal(t, 1, readCount(t, storage.DriverJSON, dir, model.CollectionClasses))

	res = run(t, dir, "", "checkpoint", "delete", "awal", "--force")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Deleted checkpoint awal")

	res = run(t, dir, "", "checkpoint", "restore", "awal", "--force")
	assert.ErrorIs(t, res.err, storage.ErrCheckpointNotFound)
}

func TestCheckpointNeedsPersistentStore(t *testing.T) {
	res := run(t, t.TempDir(), "", "--storage-driver", "memory", "checkpoint", "list")
	assert.Error(t, res.err)
}

func TestRemindRunDryRun(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	for range 2 {
		res := run(t, dir, "", "remind", "run", "--dry-run")
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "→ G1")
		assert.Contains(t, res.out, "Quiz Basis Data")
		assert.Contains(t, res.out, "1 due, 1 sent, 0 already sent today, 0 failed")
	}
	assert.Equal(t, 0, readCount(t, storage.DriverJSON, dir, model.CollectionReminderLog))
}

func TestRemindDue(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	res := run(t, dir, "", "remind", "due")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Quiz Basis Data")
	assert.Contains(t, res.out, "Kelas-3A")

	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	deadline := time.Now().In(loc).AddDate(0, 0, 3).Format(model.DeadlineLayout)
	res = run(t, dir, "", "remind", "due", "--on", deadline)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "No reminders due.")

	res = run(t, dir, "", "remind", "due", "--on", "besok")
	assert.Error(t, res.err)
}

func TestRemindTestDryRun(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	res := run(t, dir, "", "remind", "test", "G1", "--dry-run")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "TEST REMINDER SYSTEM")
	assert.Contains(t, res.out, "Quiz Basis Data")

	res = run(t, dir, "", "remind", "test", "unknown", "--dry-run")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "belum diinisialisasi")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	mock := sheets.NewMockWriter()
	original := newReportWriter
	newReportWriter = func(context.Context, *config.Config) (sheets.ReportWriter, error) {
		return mock, nil
	}
	t.Cleanup(func() { newReportWriter = original })

	res := run(t, dir, "", "export")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Exported Kelas-3A")
	assert.Contains(t, res.out, "spreadsheets/d/mock-spreadsheet")

	written := mock.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "Kelas-3A", written[0].Class.Name)
	assert.Equal(t, int64(25000), written[0].Summary.TotalBalances)

	res = run(t, dir, "", "export", "--group", "G9")
	assert.Error(t, res.err)
	assert.Len(t, mock.Written(), 1)
}

func TestExportAuthNeedsClientCredentials(t *testing.T) {
	res := run(t, t.TempDir(), "", "export", "auth")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "client_id")
}
