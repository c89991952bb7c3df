// Package jobs hosts the Asynq worker, scheduler, and the background tasks
// of the service.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportOverrunScan sweeps active BOQs for profit-buffer overruns.
	TaskReportOverrunScan = "report:overrun_scan"
)

// OverrunScanPayload parameterises one overrun scan run. Zero values fall
// back to the worker's configured defaults.
type OverrunScanPayload struct {
	// Threshold is the profit_consumed / planned_profit ratio above which
	// an alert is recorded.
	Threshold float64 `json:"threshold,omitempty"`
	// Concurrency bounds how many BOQ reports are computed in parallel.
	Concurrency int `json:"concurrency,omitempty"`
}

// NewOverrunScanTask constructs an Asynq task for the overrun scan.
func NewOverrunScanTask(payload OverrunScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportOverrunScan, data), nil
}
