package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/quotegrab/models"
	"github.com/use-agent/quotegrab/scraper"
	"github.com/use-agent/quotegrab/webhook"
)

// jobStore holds all in-flight and completed batch jobs.
var jobStore sync.Map

// jobTTL is how long a job stays queryable after creation.
const jobTTL = time.Hour

func init() {
	// Background goroutine to expire jobs older than jobTTL.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			expireJobs(time.Now().Add(-jobTTL))
		}
	}()
}

func expireJobs(cutoff time.Time) {
	jobStore.Range(func(key, value any) bool {
		job := value.(*models.BatchJob)
		if job.CreatedAt < cutoff.Unix() {
			jobStore.Delete(key)
		}
		return true
	})
}

// PostJob returns a handler for POST /api/v1/jobs.
// It validates the request, registers the job and runs the batch in the
// background.
func PostJob(sc *scraper.Scraper, maxTargets int, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.JobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err.Error())
			return
		}
		if err := validateTargets(req.Targets, maxTargets); err != nil {
			invalidInput(c, err.Error())
			return
		}

		job := &models.BatchJob{
			ID:         "job-" + uuid.NewString(),
			Status:     models.JobProcessing,
			Total:      len(req.Targets),
			WebhookURL: req.WebhookURL,
			CreatedAt:  time.Now().Unix(),
		}
		jobStore.Store(job.ID, job)

		// Detached from the request: the client returns before the batch ends.
		go runJob(sc, job, req.Targets, webhookSecret)

		c.JSON(http.StatusAccepted, models.JobResponse{
			ID:     job.ID,
			Status: models.JobProcessing,
			Total:  job.Total,
		})
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := jobStore.Load(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "job not found", nil))
			return
		}
		c.JSON(http.StatusOK, val.(*models.BatchJob).Snapshot())
	}
}

// runJob drives one asynchronous batch to completion and notifies the
// webhook, if any.
func runJob(sc *scraper.Scraper, job *models.BatchJob, targets []models.ExtractionTarget, secret string) <-chan struct{} {
	rep, err := sc.Run(context.Background(), targets, func(int, models.ExtractionResult) {
		job.MarkDone()
	})
	if err != nil {
		var se *models.ScrapeError
		if !errors.As(err, &se) {
			se = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
		}
		job.Fail(se.ToDetail())
	} else {
		job.Finish(rep.Results, *rep.Timing())
	}

	snap := job.Snapshot()
	slog.Info("batch job finished",
		"id", snap.ID,
		"status", snap.Status,
		"completed", snap.Completed,
		"total", snap.Total,
	)

	if job.WebhookURL == "" {
		return nil
	}
	return webhook.DeliverAsync(job.WebhookURL, secret,
		webhook.NewEvent(webhook.EventBatchCompleted, snap.ID, snap))
}
