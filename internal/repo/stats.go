// Package repo implements the durable record store, backed by GORM. This file
// provides small aggregate queries over one batch, used by the admin API and
// the CLI.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// BatchStats returns per-status counts for batchFile, how many records were
// warned, and the earliest archive_at of the batch.
//
// When the batch has no rows, Total is 0 and ArchiveAt is nil; this is not an
// error.
func BatchStats(ctx context.Context, db *gorm.DB, batchFile string) (*domain.BatchStats, error) {
	out := &domain.BatchStats{BatchFile: batchFile, ByStatus: map[domain.Status]int{}}
	q := db.WithContext(ctx).Model(&domain.PaymentRecord{}).Where("batch_file = ?", batchFile)

	// Count
	if err := q.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if out.Total == 0 {
		return out, nil
	}

	var rows []struct {
		Status domain.Status
		N      int
	}
	if err := q.Session(&gorm.Session{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out.ByStatus[r.Status] = r.N
	}

	if err := q.Session(&gorm.Session{}).Where("warning_sent = ?", true).Count(&out.Warned).Error; err != nil {
		return nil, err
	}

	// Earliest archive_at (avoid MIN() -> TEXT in SQLite)
	var row struct {
		ArchiveAt time.Time
	}
	if err := q.Session(&gorm.Session{}).Select("archive_at").Order("archive_at ASC").Limit(1).Scan(&row).Error; err != nil {
		return nil, err
	}
	out.ArchiveAt = &row.ArchiveAt
	return out, nil
}
