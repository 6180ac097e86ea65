package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/quotegrab/models"
)

func TestExpireJobs(t *testing.T) {
	old := &models.BatchJob{ID: "job-old", CreatedAt: time.Now().Add(-2 * time.Hour).Unix()}
	fresh := &models.BatchJob{ID: "job-fresh", CreatedAt: time.Now().Unix()}
	jobStore.Store(old.ID, old)
	jobStore.Store(fresh.ID, fresh)
	defer jobStore.Delete(fresh.ID)

	expireJobs(time.Now().Add(-jobTTL))

	_, ok := jobStore.Load(old.ID)
	assert.False(t, ok)
	_, ok = jobStore.Load(fresh.ID)
	assert.True(t, ok)
}

func TestValidateTargets(t *testing.T) {
	ok := models.ExtractionTarget{Name: "Apple", URL: "https://quotes.test/aapl"}

	assert.NoError(t, validateTargets([]models.ExtractionTarget{ok, ok}, 2))
	assert.Error(t, validateTargets(nil, 2))
	assert.Error(t, validateTargets([]models.ExtractionTarget{ok, ok, ok}, 2))
	assert.Error(t, validateTargets([]models.ExtractionTarget{{Name: "  ", URL: ok.URL}}, 2))
	assert.Error(t, validateTargets([]models.ExtractionTarget{{Name: "A"}}, 2))
	assert.NoError(t, validateTargets([]models.ExtractionTarget{ok, ok, ok}, 0), "no limit")
}
