package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quotegrab/models"
	"github.com/use-agent/quotegrab/scraper"
)

// Quotes returns a handler for POST /scrap and POST /api/v1/quotes.
//
// Flow:
//  1. Parse the JSON array of {empresa, url} and validate its size.
//  2. Scraper.Run → one result per target, in request order.
//  3. Write the results array with batch timing headers.
//
// Only an engine that cannot start fails the request (503); target
// failures are reported inside the array.
func Quotes(sc *scraper.Scraper, maxTargets int) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var targets []models.ExtractionTarget
		if err := c.ShouldBindJSON(&targets); err != nil {
			invalidInput(c, err.Error())
			return
		}
		if err := validateTargets(targets, maxTargets); err != nil {
			invalidInput(c, err.Error())
			return
		}

		// ── 2. Run batch ────────────────────────────────────────────
		slog.Info("quote batch received", "targets", len(targets), "capacity", sc.Stats().Capacity)
		rep, err := sc.Run(c.Request.Context(), targets, nil)
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		c.Header("X-Batch-Duration-Ms", strconv.FormatInt(rep.Total.Milliseconds(), 10))
		c.Header("X-Batch-Average-Ms", strconv.FormatInt(rep.Average.Milliseconds(), 10))
		c.JSON(http.StatusOK, rep.Results)
	}
}

// validateTargets rejects empty or oversized batches and entries missing a
// name or URL. Unreachable URLs are not rejected here; they fail per target.
func validateTargets(targets []models.ExtractionTarget, maxTargets int) error {
	if len(targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	if maxTargets > 0 && len(targets) > maxTargets {
		return fmt.Errorf("maximum %d targets per batch", maxTargets)
	}
	for i, t := range targets {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("target %d: empresa is required", i)
		}
		if strings.TrimSpace(t.URL) == "" {
			return fmt.Errorf("target %d: url is required", i)
		}
	}
	return nil
}
