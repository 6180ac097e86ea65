package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/quotegrab/models"
)

func okResult(url, price string) models.ExtractionResult {
	r := models.NewResult(models.ExtractionTarget{Name: "x", URL: url})
	r.Price = price
	r.Status = models.StatusOK
	return r
}

func TestCache_HitAndExpiry(t *testing.T) {
	c := New(10, 30*time.Millisecond)
	defer c.Stop()

	c.Set("https://quotes.test/a", okResult("https://quotes.test/a", "1.00"))
	r, ok := c.Get("https://quotes.test/a")
	assert.True(t, ok)
	assert.Equal(t, "1.00", r.Price)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("https://quotes.test/a")
	assert.False(t, ok)
}

func TestCache_SkipsFailedResults(t *testing.T) {
	c := New(10, time.Minute)
	defer c.Stop()

	c.Set("https://quotes.test/a", models.FailedResult(models.ExtractionTarget{URL: "https://quotes.test/a"}, nil))
	_, ok := c.Get("https://quotes.test/a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c := New(2, time.Minute)
	defer c.Stop()

	c.Set("a", okResult("a", "1"))
	c.Set("b", okResult("b", "2"))
	c.Set("b", okResult("b", "3"))
	assert.Equal(t, 2, c.Len())

	c.Set("c", okResult("c", "4"))
	assert.Equal(t, 2, c.Len())
	r, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "4", r.Price)
}

func TestKey_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, Key("https://quotes.test/a"), Key(" https://quotes.test/a\n"))
	assert.NotEqual(t, Key("https://quotes.test/a"), Key("https://quotes.test/b"))
}

func TestCache_StopIsIdempotent(t *testing.T) {
	c := New(1, time.Minute)
	c.Stop()
	c.Stop()
}
