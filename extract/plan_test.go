package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/quotegrab/models"
)

func TestDefaultPlan_CoversEveryField(t *testing.T) {
	require.NoError(t, DefaultPlan.Validate())

	for _, k := range models.AllFields() {
		f, ok := DefaultPlan.Lookup(k)
		require.True(t, ok, "field %s missing from plan", k)
		assert.NotEmpty(t, f.Strategies, "field %s", k)
	}

	assert.Equal(t, models.FieldExchangeName, DefaultPlan.ExchangeName().Key)
	assert.Equal(t, models.UnknownExchange, DefaultPlan.ExchangeName().Default)
	for _, f := range DefaultPlan.Fields() {
		assert.Equal(t, models.NotAvailable, f.Default, "field %s", f.Key)
		assert.NotEqual(t, models.FieldExchangeName, f.Key)
	}
}

func TestPlan_FieldsIsACopy(t *testing.T) {
	fields := DefaultPlan.Fields()
	fields[0].Strategies[0] = Text("body")
	fields[0] = FieldPlan{}

	again := DefaultPlan.Fields()
	assert.Equal(t, models.FieldCompanyName, again[0].Key)
	assert.Equal(t, "div.mb-1 h1", again[0].Strategies[0].Selector)
}

func TestNewPlan_Rejects(t *testing.T) {
	exchange := FieldPlan{Key: models.FieldExchangeName, Strategies: []Strategy{Text("span")}}

	tests := []struct {
		name   string
		fields []FieldPlan
		exch   FieldPlan
	}{
		{
			name:   "bad selector",
			fields: []FieldPlan{{Key: models.FieldPrice, Strategies: []Strategy{Text("div[")}}},
			exch:   exchange,
		},
		{
			name: "duplicate key",
			fields: []FieldPlan{
				{Key: models.FieldPrice, Strategies: []Strategy{Text("a")}},
				{Key: models.FieldPrice, Strategies: []Strategy{Text("b")}},
			},
			exch: exchange,
		},
		{
			name:   "empty chain",
			fields: []FieldPlan{{Key: models.FieldPrice}},
			exch:   exchange,
		},
		{
			name:   "attribute without name",
			fields: []FieldPlan{{Key: models.FieldLogoURL, Strategies: []Strategy{{Selector: "img", Kind: KindAttribute}}}},
			exch:   exchange,
		},
		{
			name:   "exchange in main list",
			fields: []FieldPlan{{Key: models.FieldExchangeName, Strategies: []Strategy{Text("a")}}},
			exch:   exchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.fields, tt.exch)
			assert.Error(t, err)
		})
	}
}
