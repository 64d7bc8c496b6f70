package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/infrastructure/persistence/sqlite"
)

// RecordRepository implements port.RecordRepository. The step_records
// table is append-only; there are deliberately no update or delete
// statements in this file.
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new step record repository
func NewRecordRepository(db *sqlite.DB, logger *zap.Logger) port.RecordRepository {
	return &RecordRepository{
		db:     db.DB,
		logger: logger,
	}
}

// Create appends a step record, including its signature columns when the
// action carried one.
func (r *RecordRepository) Create(ctx context.Context, record *entity.StepRecord) error {
	reasons, err := json.Marshal(record.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	query := `
		INSERT INTO step_records (
			instance_id, step_order, actor_id, actor_name, actor_role, action,
			remarks, reasons, delegated_to,
			signed_by, signed_by_name, signed_at, sig_meaning, sig_reason,
			certificate_serial, ip_address, sig_verified, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var signedBy, signedByName, sigMeaning, sigReason, certSerial, ipAddress sql.NullString
	var signedAt sql.NullTime
	var sigVerified sql.NullBool
	if sig := record.Signature; sig != nil {
		signedBy = sql.NullString{String: sig.SignedBy, Valid: true}
		signedByName = sql.NullString{String: sig.SignedByName, Valid: true}
		signedAt = sql.NullTime{Time: sig.SignedAt, Valid: true}
		sigMeaning = sql.NullString{String: sig.Meaning, Valid: true}
		sigReason = sql.NullString{String: sig.Reason, Valid: true}
		certSerial = sql.NullString{String: sig.CertificateSerial, Valid: true}
		ipAddress = sql.NullString{String: sig.IPAddress, Valid: true}
		sigVerified = sql.NullBool{Bool: sig.Verified, Valid: true}
	}

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		record.InstanceID,
		record.StepOrder,
		record.ActorID,
		record.ActorName,
		record.ActorRole.String(),
		record.Action,
		record.Remarks,
		string(reasons),
		record.DelegatedTo,
		signedBy, signedByName, signedAt, sigMeaning, sigReason,
		certSerial, ipAddress, sigVerified,
		record.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create step record", zap.Error(err))
		return fmt.Errorf("failed to create step record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByInstanceID retrieves all records for an instance in insertion order
func (r *RecordRepository) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.StepRecord, error) {
	query := `
		SELECT id, instance_id, step_order, actor_id, actor_name, actor_role,
			action, remarks, reasons, delegated_to,
			signed_by, signed_by_name, signed_at, sig_meaning, sig_reason,
			certificate_serial, ip_address, sig_verified, timestamp
		FROM step_records
		WHERE instance_id = ?
		ORDER BY id ASC
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to get step records", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get step records: %w", err)
	}
	defer rows.Close()

	var records []*entity.StepRecord
	for rows.Next() {
		var record entity.StepRecord
		var role, reasons string
		var signedBy, signedByName, sigMeaning, sigReason, certSerial, ipAddress sql.NullString
		var signedAt sql.NullTime
		var sigVerified sql.NullBool

		err := rows.Scan(
			&record.ID,
			&record.InstanceID,
			&record.StepOrder,
			&record.ActorID,
			&record.ActorName,
			&role,
			&record.Action,
			&record.Remarks,
			&reasons,
			&record.DelegatedTo,
			&signedBy, &signedByName, &signedAt, &sigMeaning, &sigReason,
			&certSerial, &ipAddress, &sigVerified,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step record: %w", err)
		}

		record.ActorRole = entity.Role(role)
		if err := json.Unmarshal([]byte(reasons), &record.Reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons: %w", err)
		}

		if signedBy.Valid {
			record.Signature = &entity.Signature{
				SignedBy:          signedBy.String,
				SignedByName:      signedByName.String,
				SignedAt:          signedAt.Time,
				Meaning:           sigMeaning.String,
				Reason:            sigReason.String,
				CertificateSerial: certSerial.String,
				IPAddress:         ipAddress.String,
				Verified:          sigVerified.Bool,
			}
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.RecordRepository = (*RecordRepository)(nil)
