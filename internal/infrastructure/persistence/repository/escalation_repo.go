package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/infrastructure/persistence/sqlite"
)

// EscalationRepository implements port.EscalationRepository
type EscalationRepository struct {
	db        *sql.DB
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewEscalationRepository creates a new escalation policy repository
func NewEscalationRepository(db *sqlite.DB, logger *zap.Logger) port.EscalationRepository {
	return &EscalationRepository{
		db:        db.DB,
		txManager: db,
		logger:    logger,
	}
}

// ReplaceLevels swaps the template's escalation ladder atomically
func (r *EscalationRepository) ReplaceLevels(ctx context.Context, templateID int64, levels []entity.EscalationLevel) error {
	return r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := pick(txCtx, r.db).ExecContext(txCtx, `DELETE FROM escalation_levels WHERE template_id = ?`, templateID); err != nil {
			return fmt.Errorf("failed to clear escalation levels: %w", err)
		}

		query := `
			INSERT INTO escalation_levels (
				template_id, level, time_threshold_hours, assignee_id, assignee_name,
				role, notify_email, notify_in_app
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		for i := range levels {
			result, err := pick(txCtx, r.db).ExecContext(txCtx, query,
				templateID,
				levels[i].Level,
				levels[i].TimeThresholdHours,
				levels[i].AssigneeID,
				levels[i].AssigneeName,
				levels[i].Role.String(),
				levels[i].NotifyEmail,
				levels[i].NotifyInApp,
			)
			if err != nil {
				r.logger.Error("Failed to insert escalation level", zap.Error(err))
				return fmt.Errorf("failed to insert escalation level: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
			levels[i].ID = id
			levels[i].TemplateID = templateID
		}

		return nil
	})
}

// GetByTemplateID retrieves the escalation ladder ordered by level
func (r *EscalationRepository) GetByTemplateID(ctx context.Context, templateID int64) ([]entity.EscalationLevel, error) {
	query := `
		SELECT id, template_id, level, time_threshold_hours, assignee_id, assignee_name,
			role, notify_email, notify_in_app
		FROM escalation_levels
		WHERE template_id = ?
		ORDER BY level ASC
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, templateID)
	if err != nil {
		r.logger.Error("Failed to get escalation levels", zap.Int64("template_id", templateID), zap.Error(err))
		return nil, fmt.Errorf("failed to get escalation levels: %w", err)
	}
	defer rows.Close()

	var levels []entity.EscalationLevel
	for rows.Next() {
		var l entity.EscalationLevel
		var role string
		if err := rows.Scan(&l.ID, &l.TemplateID, &l.Level, &l.TimeThresholdHours, &l.AssigneeID, &l.AssigneeName, &role, &l.NotifyEmail, &l.NotifyInApp); err != nil {
			return nil, fmt.Errorf("failed to scan escalation level: %w", err)
		}
		l.Role = entity.Role(role)
		levels = append(levels, l)
	}

	return levels, rows.Err()
}

// Verify interface compliance
var _ port.EscalationRepository = (*EscalationRepository)(nil)
