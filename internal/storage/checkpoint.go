package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/service"
)

// CheckpointManager snapshots and restores every collection of a store.
type CheckpointManager struct {
	store          service.RecordStore
	checkpointsDir string
	now            service.Clock
}

// CheckpointMetadata is stored next to each snapshot as <id>.meta.json.
type CheckpointMetadata struct {
	CreatedAt   time.Time      `json:"created_at"`
	RowCounts   map[string]int `json:"row_counts"`
	ID          string         `json:"id"`
	Description string         `json:"description"`
	FileSize    int64          `json:"file_size"`
	IsAuto      bool           `json:"is_auto"`
}

// CheckpointInfo represents information about a checkpoint for listing.
type CheckpointInfo struct {
	CreatedAt   time.Time
	ID          string
	Description string
	FileSize    int64
	Classes     int
	Students    int
	CashRecords int
	Expenses    int
	Tasks       int
	IsAuto      bool
}

type snapshot struct {
	Collections map[model.Collection][]json.RawMessage `json:"collections"`
}

// Common errors.
var (
	ErrCheckpointNotFound  = errors.New("checkpoint not found")
	ErrCheckpointCorrupted = errors.New("checkpoint integrity check failed")
	ErrCheckpointExists    = errors.New("checkpoint already exists")
)

// NewCheckpointManager creates a manager writing into dir/checkpoints.
func NewCheckpointManager(store service.RecordStore, dir string) (*CheckpointManager, error) {
	checkpointsDir := filepath.Join(dir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &CheckpointManager{
		store:          store,
		checkpointsDir: checkpointsDir,
		now:            time.Now,
	}, nil
}

// Create snapshots every collection under tag. An empty tag is generated
// from the current time.
func (cm *CheckpointManager) Create(ctx context.Context, tag, description string) (*CheckpointInfo, error) {
	return cm.create(ctx, tag, description, false)
}

func (cm *CheckpointManager) create(ctx context.Context, tag, description string, auto bool) (*CheckpointInfo, error) {
	if tag == "" {
		tag = fmt.Sprintf("checkpoint-%s", cm.now().Format("2006-01-02-150405"))
	}
	if err := validateTag(tag); err != nil {
		return nil, err
	}

	snapPath := cm.snapshotPath(tag)
	if _, err := os.Stat(snapPath); err == nil {
		return nil, ErrCheckpointExists
	}

	snap := snapshot{Collections: make(map[model.Collection][]json.RawMessage)}
	rowCounts := make(map[string]int)
	for _, c := range model.Collections() {
		records, err := cm.store.Read(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", c, err)
		}
		snap.Collections[c] = records
		rowCounts[string(c)] = len(records)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(snapPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	metadata := CheckpointMetadata{
		ID:          tag,
		CreatedAt:   cm.now(),
		Description: description,
		FileSize:    int64(len(data)),
		RowCounts:   rowCounts,
		IsAuto:      auto,
	}
	if err := cm.saveMetadata(cm.metadataPath(tag), metadata); err != nil {
		if rmErr := os.Remove(snapPath); rmErr != nil {
			slog.Error("failed to remove checkpoint file after metadata save failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	return metadata.info(), nil
}

// List returns all checkpoints, newest first.
func (cm *CheckpointManager) List(_ context.Context) ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(cm.checkpointsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	checkpoints := make([]CheckpointInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}

		metadata, err := cm.loadMetadata(filepath.Join(cm.checkpointsDir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable checkpoint metadata", "file", entry.Name(), "error", err)
			continue
		}
		checkpoints = append(checkpoints, *metadata.info())
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].CreatedAt.After(checkpoints[j].CreatedAt)
	})

	return checkpoints, nil
}

// Restore replaces every collection with the snapshot's contents. The
// current state is saved first as an automatic checkpoint, and if a
// collection fails to restore the ones already replaced are put back.
func (cm *CheckpointManager) Restore(ctx context.Context, checkpointID string) error {
	if err := validateTag(checkpointID); err != nil {
		return err
	}

	data, err := os.ReadFile(cm.snapshotPath(checkpointID))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCheckpointNotFound
		}
		return fmt.Errorf("failed to access checkpoint: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointCorrupted, err)
	}
	for c, records := range snap.Collections {
		if err := validateCollection(c); err != nil {
			return fmt.Errorf("%w: %w", ErrCheckpointCorrupted, err)
		}
		for i, r := range records {
			if !json.Valid(r) {
				return fmt.Errorf("%w: %s record %d", ErrCheckpointCorrupted, c, i)
			}
		}
	}

	backupTag := fmt.Sprintf("pre-restore-%s", cm.now().Format("2006-01-02-150405.000"))
	if _, err := cm.create(ctx, backupTag, "before restoring "+checkpointID, true); err != nil {
		return fmt.Errorf("failed to back up current state: %w", err)
	}

	previous := make(map[model.Collection][]json.RawMessage, len(snap.Collections))
	for _, c := range model.Collections() {
		records, err := cm.store.Read(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to read %s before restore: %w", c, err)
		}
		previous[c] = records
	}

	var restored []model.Collection
	for _, c := range model.Collections() {
		if err := cm.store.Replace(ctx, c, snap.Collections[c]); err != nil {
			restoreErr := fmt.Errorf("failed to restore %s: %w", c, err)
			if rbErr := cm.rollback(ctx, restored, previous); rbErr != nil {
				return fmt.Errorf("%w; rollback failed, recover from checkpoint %s: %w", restoreErr, backupTag, rbErr)
			}
			return fmt.Errorf("%w; previous state put back", restoreErr)
		}
		restored = append(restored, c)
	}

	return nil
}

// rollback writes previous back into the collections a failed restore
// already replaced. Every collection is attempted.
func (cm *CheckpointManager) rollback(ctx context.Context, collections []model.Collection, previous map[model.Collection][]json.RawMessage) error {
	var errs []error
	for _, c := range collections {
		if err := cm.store.Replace(context.WithoutCancel(ctx), c, previous[c]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes a checkpoint.
func (cm *CheckpointManager) Delete(_ context.Context, checkpointID string) error {
	if err := validateTag(checkpointID); err != nil {
		return err
	}

	if err := os.Remove(cm.snapshotPath(checkpointID)); err != nil {
		if os.IsNotExist(err) {
			return ErrCheckpointNotFound
		}
		return fmt.Errorf("failed to remove checkpoint file: %w", err)
	}

	if err := os.Remove(cm.metadataPath(checkpointID)); err != nil {
		slog.Debug("failed to remove metadata file", "error", err, "id", checkpointID)
	}

	return nil
}

// GetCheckpointInfo retrieves information about a specific checkpoint.
func (cm *CheckpointManager) GetCheckpointInfo(_ context.Context, checkpointID string) (*CheckpointInfo, error) {
	if err := validateTag(checkpointID); err != nil {
		return nil, err
	}

	metadata, err := cm.loadMetadata(cm.metadataPath(checkpointID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint metadata: %w", err)
	}
	return metadata.info(), nil
}

func (cm *CheckpointManager) snapshotPath(id string) string {
	return filepath.Join(cm.checkpointsDir, id+".json")
}

func (cm *CheckpointManager) metadataPath(id string) string {
	return filepath.Join(cm.checkpointsDir, id+".meta.json")
}

func (cm *CheckpointManager) saveMetadata(path string, metadata CheckpointMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (cm *CheckpointManager) loadMetadata(path string) (*CheckpointMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var metadata CheckpointMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

func (m *CheckpointMetadata) info() *CheckpointInfo {
	return &CheckpointInfo{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		Description: m.Description,
		FileSize:    m.FileSize,
		Classes:     m.RowCounts[string(model.CollectionClasses)],
		Students:    m.RowCounts[string(model.CollectionStudents)],
		CashRecords: m.RowCounts[string(model.CollectionCashRecords)],
		Expenses:    m.RowCounts[string(model.CollectionClassExpenses)],
		Tasks:       m.RowCounts[string(model.CollectionTasks)],
		IsAuto:      m.IsAuto,
	}
}
