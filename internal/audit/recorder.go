// Package audit appends immutable event records for mutating actions.
package audit

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskhub-service/internal/model"
	"taskhub-service/prometheus"
)

// Recorder writes audit log entries. Outside a transaction the write is
// fire-and-forget: a failed insert is logged and counted but never fails
// the caller's operation. Inside a transaction (WithTx) the insert error
// propagates so the whole unit of work rolls back together.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecorder builds a Recorder on the given database handle.
func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record appends an audit entry. The audit trail tolerates loss, but
// never silently: failures go to the error log and a metric.
func (r *Recorder) Record(tenantID, userID, action, entityType, entityID, ipAddress string) {
	entry := model.AuditLog{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  ipAddress,
	}

	if err := r.db.Create(&entry).Error; err != nil {
		prometheus.AuditFailureCounter.Inc()
		r.log.Error("Failed to write audit log entry",
			zap.String("action", action),
			zap.String("tenant_id", tenantID),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

// RecordTx appends an audit entry inside the caller's transaction and
// returns the insert error, making the entry part of the atomic unit.
func (r *Recorder) RecordTx(tx *gorm.DB, tenantID, userID, action, entityType, entityID, ipAddress string) error {
	entry := model.AuditLog{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  ipAddress,
	}
	return tx.Create(&entry).Error
}
