// Package jobs runs the background maintenance tasks over Asynq.
package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditFlush drains buffered audit entries to durable storage.
	TaskAuditFlush = "audit:flush"
	// TaskPermissionCleanup demotes expired permission grants.
	TaskPermissionCleanup = "privacy:cleanup_expired"
)

// NewAuditFlushTask constructs an audit flush task. The task carries no
// payload; the handler flushes whatever is buffered at execution time.
func NewAuditFlushTask() *asynq.Task {
	return asynq.NewTask(TaskAuditFlush, nil)
}

// NewPermissionCleanupTask constructs an expired-permission sweep task.
func NewPermissionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskPermissionCleanup, nil)
}
