package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/quotegrab/engine"
	"github.com/use-agent/quotegrab/engine/enginetest"
	"github.com/use-agent/quotegrab/models"
)

const pageURL = "https://quotes.test/aapl"

func loadPage(t *testing.T, nodes map[string]enginetest.Node) engine.Session {
	t.Helper()
	e := enginetest.New(map[string]*enginetest.Page{pageURL: {Nodes: nodes}})
	s, err := e.Open(context.Background(), engine.SessionOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Navigate(context.Background(), pageURL, time.Second))
	return s
}

func TestExtract_FallbackOrder(t *testing.T) {
	// S1 absent, S2 present but blank, S3 present: S3 wins.
	page := loadPage(t, map[string]enginetest.Node{
		".s2": {Text: "   \n"},
		".s3": {Text: " 189.84 "},
		".s4": {Text: "never reached"},
	})
	f := FieldPlan{
		Key:        models.FieldPrice,
		Default:    models.NotAvailable,
		Strategies: []Strategy{Text(".s1"), Text(".s2"), Text(".s3"), Text(".s4")},
	}

	got := Extractor{FieldTimeout: 10 * time.Millisecond}.Extract(context.Background(), page, f)
	assert.Equal(t, "189.84", got)
}

func TestExtract_SentinelWhenExhausted(t *testing.T) {
	page := loadPage(t, map[string]enginetest.Node{
		".blank":    {Text: ""},
		".hidden":   {Text: "hidden", Hidden: true},
		".detached": {Text: "gone", Detached: true},
	})

	tests := []struct {
		name string
		plan FieldPlan
		want string
	}{
		{
			name: "all absent or empty",
			plan: FieldPlan{Key: models.FieldPrice, Default: models.NotAvailable,
				Strategies: []Strategy{Text(".missing"), Text(".blank"), Text(".hidden"), Text(".detached")}},
			want: models.NotAvailable,
		},
		{
			name: "exchange name default",
			plan: FieldPlan{Key: models.FieldExchangeName, Default: models.UnknownExchange, NoWait: true,
				Strategies: []Strategy{Text(".missing"), Text(".blank")}},
			want: models.UnknownExchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extractor{}.Extract(context.Background(), page, tt.plan)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_NoWaitSkipsVisibility(t *testing.T) {
	page := loadPage(t, map[string]enginetest.Node{
		".exchange": {Text: "NASDAQ", Hidden: true},
	})
	f := FieldPlan{Key: models.FieldExchangeName, Default: models.UnknownExchange,
		Strategies: []Strategy{Text(".exchange")}}

	assert.Equal(t, models.UnknownExchange, Extractor{}.Extract(context.Background(), page, f))

	f.NoWait = true
	assert.Equal(t, "NASDAQ", Extractor{}.Extract(context.Background(), page, f))
}

func TestExtract_Attribute(t *testing.T) {
	page := loadPage(t, map[string]enginetest.Node{
		"img.nosrc": {Attrs: map[string]string{"alt": "logo"}},
		"img.logo":  {Attrs: map[string]string{"src": " https://cdn.test/aapl.png "}},
	})
	f := FieldPlan{Key: models.FieldLogoURL, Default: models.NotAvailable,
		Strategies: []Strategy{Attr("img.nosrc", "src"), Attr("img.logo", "src")}}

	got := Extractor{}.Extract(context.Background(), page, f)
	assert.Equal(t, "https://cdn.test/aapl.png", got)
}

func TestExtract_CanceledContextReturnsDefault(t *testing.T) {
	page := loadPage(t, map[string]enginetest.Node{".price": {Text: "1"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := FieldPlan{Key: models.FieldPrice, Default: models.NotAvailable, Strategies: []Strategy{Text(".price")}}
	assert.Equal(t, models.NotAvailable, Extractor{}.Extract(ctx, page, f))
}
