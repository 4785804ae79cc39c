package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/phantommask/internal/handlers/render"
)

// queryParser reads typed query params collecting every parse error
type queryParser struct {
	values url.Values
	errs   map[string]string
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{values: r.URL.Query(), errs: map[string]string{}}
}

func (p *queryParser) String(name string) string {
	return p.values.Get(name)
}

// Int parses required integer param
func (p *queryParser) Int(name string) int {
	raw := p.values.Get(name)
	if raw == "" {
		p.errs[name] = "This field is required"
		return 0
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs[name] = "Value must be an integer"
	}
	return v
}

// Decimal parses required decimal param
func (p *queryParser) Decimal(name string) decimal.Decimal {
	raw := p.values.Get(name)
	if raw == "" {
		p.errs[name] = "This field is required"
		return decimal.Zero
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.errs[name] = "Value must be a number"
	}
	return v
}

// Bind validates query struct tags after params are parsed
// Writes validation error response and returns false if request is invalid
func (p *queryParser) Bind(w http.ResponseWriter, value any) bool {
	if len(p.errs) > 0 {
		render.FieldErrors(w, p.errs)
		return false
	}

	return render.Validate(w, value) == nil
}
