package models

import "sync"

// JobRequest is the payload for POST /api/v1/jobs.
type JobRequest struct {
	// Targets is the batch to extract. Required.
	Targets []ExtractionTarget `json:"targets" binding:"required,min=1"`

	// WebhookURL receives a batch.completed event when the job finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// JobResponse is the immediate response for POST /api/v1/jobs.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// JobStatusResponse is the response for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	Completed  int                `json:"completed"`
	Total      int                `json:"total"`
	Timing     *BatchTiming       `json:"timing,omitempty"`
	Results    []ExtractionResult `json:"results,omitempty"`
	ErrorCause *ErrorDetail       `json:"error,omitempty"`
}

// BatchTiming reports the informational duration of a finished batch.
type BatchTiming struct {
	TotalMs   int64 `json:"total_ms"`
	AverageMs int64 `json:"average_ms"`
	OK        int   `json:"ok"`
	Failed    int   `json:"failed"`
}

// Job status values.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobPartial    = "partial"
	JobFailed     = "failed"
)

// BatchJob tracks an asynchronous batch. All fields are guarded by mu.
type BatchJob struct {
	mu         sync.Mutex
	ID         string
	Status     string
	Total      int
	Completed  int
	Results    []ExtractionResult
	Timing     *BatchTiming
	ErrorCause *ErrorDetail
	WebhookURL string
	CreatedAt  int64 // unix timestamp
}

// MarkDone records one more finished target.
func (j *BatchJob) MarkDone() {
	j.mu.Lock()
	j.Completed++
	j.mu.Unlock()
}

// Finish stores the final results and derives the job status from them.
func (j *BatchJob) Finish(results []ExtractionResult, timing BatchTiming) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results = results
	j.Completed = len(results)
	j.Timing = &timing
	switch {
	case timing.Failed == 0:
		j.Status = JobCompleted
	case timing.Failed == len(results):
		j.Status = JobFailed
	default:
		j.Status = JobPartial
	}
}

// Fail marks the whole job failed before any target ran.
func (j *BatchJob) Fail(detail *ErrorDetail) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobFailed
	j.ErrorCause = detail
}

// Snapshot returns a consistent copy for the status endpoint.
func (j *BatchJob) Snapshot() JobStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobStatusResponse{
		ID:         j.ID,
		Status:     j.Status,
		Completed:  j.Completed,
		Total:      j.Total,
		Timing:     j.Timing,
		Results:    j.Results,
		ErrorCause: j.ErrorCause,
	}
}
