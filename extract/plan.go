package extract

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/quotegrab/models"
)

// Kind selects what a Strategy reads from the matched element.
type Kind int

const (
	// KindText reads the trimmed inner text.
	KindText Kind = iota
	// KindAttribute reads the trimmed value of Strategy.Attr.
	KindAttribute
)

// Strategy is one candidate way to resolve a field.
type Strategy struct {
	Selector string
	Kind     Kind
	Attr     string
}

// Text returns a strategy reading the inner text of selector.
func Text(selector string) Strategy {
	return Strategy{Selector: selector, Kind: KindText}
}

// Attr returns a strategy reading attribute name of selector.
func Attr(selector, name string) Strategy {
	return Strategy{Selector: selector, Kind: KindAttribute, Attr: name}
}

func (s Strategy) String() string {
	if s.Kind == KindAttribute {
		return fmt.Sprintf("%s@%s", s.Selector, s.Attr)
	}
	return s.Selector
}

// FieldPlan is the ordered fallback chain for one field. The first
// strategy that succeeds wins; Default is used when none does.
type FieldPlan struct {
	Key        models.FieldKey
	Strategies []Strategy
	Default    string

	// NoWait skips the visibility wait and queries the DOM as it is.
	NoWait bool
}

// Plan maps every field to its fallback chain. A Plan is immutable once
// built and safe to share between goroutines.
type Plan struct {
	fields       []FieldPlan
	exchangeName FieldPlan
}

// NewPlan validates and freezes a plan. fields are resolved in the given
// order; exchangeName is resolved separately, after them.
func NewPlan(fields []FieldPlan, exchangeName FieldPlan) (*Plan, error) {
	p := &Plan{
		fields:       make([]FieldPlan, len(fields)),
		exchangeName: cloneField(exchangeName),
	}
	seen := make(map[models.FieldKey]struct{}, len(fields))
	for i, f := range fields {
		if _, dup := seen[f.Key]; dup {
			return nil, fmt.Errorf("plan: duplicate field %s", f.Key)
		}
		seen[f.Key] = struct{}{}
		p.fields[i] = cloneField(f)
	}
	if _, dup := seen[exchangeName.Key]; dup {
		return nil, fmt.Errorf("plan: field %s is also in the main list", exchangeName.Key)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Fields returns the main field chains in resolution order.
func (p *Plan) Fields() []FieldPlan {
	out := make([]FieldPlan, len(p.fields))
	for i, f := range p.fields {
		out[i] = cloneField(f)
	}
	return out
}

// ExchangeName returns the chain resolved outside the main loop.
func (p *Plan) ExchangeName() FieldPlan { return cloneField(p.exchangeName) }

// Lookup returns the chain for k.
func (p *Plan) Lookup(k models.FieldKey) (FieldPlan, bool) {
	if p.exchangeName.Key == k {
		return cloneField(p.exchangeName), true
	}
	for _, f := range p.fields {
		if f.Key == k {
			return cloneField(f), true
		}
	}
	return FieldPlan{}, false
}

// Validate checks that every selector compiles and every attribute
// strategy names an attribute.
func (p *Plan) Validate() error {
	var errs []error
	check := func(f FieldPlan) {
		if len(f.Strategies) == 0 {
			errs = append(errs, fmt.Errorf("plan: field %s has no strategies", f.Key))
		}
		for _, s := range f.Strategies {
			if _, err := cascadia.Parse(s.Selector); err != nil {
				errs = append(errs, fmt.Errorf("plan: field %s: selector %q: %w", f.Key, s.Selector, err))
			}
			if s.Kind == KindAttribute && s.Attr == "" {
				errs = append(errs, fmt.Errorf("plan: field %s: selector %q has no attribute", f.Key, s.Selector))
			}
		}
	}
	for _, f := range p.fields {
		check(f)
	}
	check(p.exchangeName)
	return errors.Join(errs...)
}

func cloneField(f FieldPlan) FieldPlan {
	f.Strategies = append([]Strategy(nil), f.Strategies...)
	return f
}

// DefaultPlan is the plan for investing.com style equity pages.
var DefaultPlan = mustPlan(
	[]FieldPlan{
		{Key: models.FieldCompanyName, Default: models.NotAvailable, Strategies: []Strategy{
			Text("div.mb-1 h1"),
			Text("h1.text-xl.font-bold"),
		}},
		{Key: models.FieldPrice, Default: models.NotAvailable, Strategies: []Strategy{
			Text("[data-test='instrument-price-last']"),
			Text(".text-2xl.font-bold"),
			Text(".instrument-price_last__JQN7_"),
		}},
		{Key: models.FieldChange, Default: models.NotAvailable, Strategies: []Strategy{
			Text("[data-test='instrument-price-change']"),
			Text(".text-sm.instrument-price_change__d9ElD"),
		}},
		{Key: models.FieldChangePct, Default: models.NotAvailable, Strategies: []Strategy{
			Text("[data-test='instrument-price-change-percent']"),
			Text(".text-sm"),
		}},
		{Key: models.FieldCurrency, Default: models.NotAvailable, Strategies: []Strategy{
			Text("[data-test='currency-in-label']"),
			Text(".text-xs"),
			Text("span[class~='ml-1.5'].font-bold"),
		}},
		{Key: models.FieldCountry, Default: models.NotAvailable, Strategies: []Strategy{
			Text("div.relative.flex.cursor-pointer.items-center span.flex-shrink"),
			Text("div.relative.flex.cursor-pointer.items-center span[class~='text-xs/5']"),
		}},
		{Key: models.FieldExchange, Default: models.NotAvailable, Strategies: []Strategy{
			Text("[data-test='instrument-header-exchange']"),
			Text("[data-test='link-exchange']"),
		}},
		{Key: models.FieldSessionState, Default: models.NotAvailable, Strategies: []Strategy{
			Text("span[data-test='trading-state-label']"),
		}},
		{Key: models.FieldCloseTime, Default: models.NotAvailable, Strategies: []Strategy{
			Text("time[data-test='trading-time-label']"),
		}},
		{Key: models.FieldLogoURL, Default: models.NotAvailable, Strategies: []Strategy{
			Attr("img[data-test='instrument-logo']", "src"),
			Attr("div.mb-1 img", "src"),
		}},
	},
	FieldPlan{Key: models.FieldExchangeName, Default: models.UnknownExchange, NoWait: true, Strategies: []Strategy{
		Text("div.flex.items-center.gap-1 span[class~='text-xs/5'].font-normal"),
		Text(".text-xs.text-gray-500"),
		Text("[data-test='exchange-name']"),
	}},
)

func mustPlan(fields []FieldPlan, exchangeName FieldPlan) *Plan {
	p, err := NewPlan(fields, exchangeName)
	if err != nil {
		panic(err)
	}
	return p
}
