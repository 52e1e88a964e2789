package postgres

import (
	"database/sql"

	"hotel-ops-backend/internal/domain"
)

// logStatsRow - агрегат журнала интеграции
type logStatsRow struct {
	Total           int             `db:"total"`
	Success         int             `db:"success"`
	Failed          int             `db:"failed"`
	Partial         int             `db:"partial"`
	Pending         int             `db:"pending"`
	AvgProcessingMS sql.NullFloat64 `db:"avg_processing_ms"`
	LastAt          sql.NullTime    `db:"last_at"`
}

func (r logStatsRow) toDomain() *domain.LogStats {
	stats := &domain.LogStats{
		Total:           r.Total,
		Success:         r.Success,
		Failed:          r.Failed,
		Partial:         r.Partial,
		Pending:         r.Pending,
		AvgProcessingMS: r.AvgProcessingMS.Float64,
	}
	if r.LastAt.Valid {
		t := r.LastAt.Time
		stats.LastAt = &t
	}
	return stats
}

const logStatsQuery = `
        SELECT COUNT(*) AS total,
            COUNT(*) FILTER (WHERE status = 'success') AS success,
            COUNT(*) FILTER (WHERE status = 'failed') AS failed,
            COUNT(*) FILTER (WHERE status = 'partial') AS partial,
            COUNT(*) FILTER (WHERE status = 'pending') AS pending,
            AVG(processing_time_ms) FILTER (WHERE status <> 'pending') AS avg_processing_ms,
            MAX(created_at) AS last_at
        FROM integration_logs
        WHERE integration_id = $1
    `
