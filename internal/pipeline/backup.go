package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexai/ingest/internal/models"
	"github.com/rs/zerolog/log"
)

// BackupManager snapshots a table before destructive mutation. Backup
// failure returns nil and must block the mutation from proceeding;
// restore and cleanup are the caller's responsibility per the
// validation outcome.
type BackupManager struct {
	store Store
	now   func() time.Time
}

func NewBackupManager(store Store) *BackupManager {
	return &BackupManager{store: store, now: time.Now}
}

// CreateBackup copies the full table under a timestamp-suffixed name.
func (b *BackupManager) CreateBackup(ctx context.Context, tableRef string) *models.BackupRecord {
	created := b.now().UTC()
	backupRef := fmt.Sprintf("%s_backup_%d", tableRef, created.Unix())

	sql := fmt.Sprintf("CREATE TABLE `%s` AS SELECT * FROM `%s`", backupRef, tableRef)
	if _, err := b.store.Exec(ctx, sql); err != nil {
		log.Warn().Err(err).Str("table", tableRef).Msg("backup creation failed")
		return nil
	}

	log.Info().Str("backup", backupRef).Msg("backup created")
	return &models.BackupRecord{
		OriginalRef: tableRef,
		BackupRef:   backupRef,
		CreatedAt:   created,
	}
}

// Restore overwrites the original table with the backup's contents.
func (b *BackupManager) Restore(ctx context.Context, rec *models.BackupRecord) bool {
	sql := fmt.Sprintf("CREATE OR REPLACE TABLE `%s` AS SELECT * FROM `%s`", rec.OriginalRef, rec.BackupRef)
	if _, err := b.store.Exec(ctx, sql); err != nil {
		log.Error().Err(err).Str("backup", rec.BackupRef).Msg("restore failed")
		return false
	}
	log.Info().Str("backup", rec.BackupRef).Msg("restored from backup")
	return true
}

// Cleanup deletes the backup table once the mutation is validated.
func (b *BackupManager) Cleanup(ctx context.Context, rec *models.BackupRecord) bool {
	if err := b.store.DeleteTable(ctx, rec.BackupRef); err != nil {
		log.Warn().Err(err).Str("backup", rec.BackupRef).Msg("could not clean up backup")
		return false
	}
	log.Info().Str("backup", rec.BackupRef).Msg("backup cleaned up")
	return true
}
