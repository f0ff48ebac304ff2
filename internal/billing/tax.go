package billing

import (
	"slices"

	"academy/internal/apperror"

	"github.com/shopspring/decimal"
)

// CalculationMethod selects how the configured tax is charged.
type CalculationMethod string

const (
	MethodPercentage CalculationMethod = "percentage"
	MethodFixed      CalculationMethod = "fixed"
)

// StudentType classifies students for tax exemptions.
type StudentType string

const (
	StudentRegular     StudentType = "regular"
	StudentScholarship StudentType = "scholarship"
	StudentSponsored   StudentType = "sponsored"
	StudentStaff       StudentType = "staff"
)

// StateRate is a named regional rate that replaces the base rate when selected.
type StateRate struct {
	Name string          `json:"name" validate:"required"`
	Code string          `json:"code" validate:"required"`
	Rate decimal.Decimal `json:"rate"`
}

// TaxItem is a billable item with its own taxability and rate.
type TaxItem struct {
	Name    string          `json:"name" validate:"required"`
	Taxable bool            `json:"taxable"`
	Rate    decimal.Decimal `json:"rate"`
}

// TaxConfig is the academy-wide tax configuration.
type TaxConfig struct {
	Enabled            bool              `json:"enabled"`
	Name               string            `json:"name" validate:"required_if=Enabled true"`
	Rate               decimal.Decimal   `json:"rate"`
	Inclusive          bool              `json:"inclusive"`
	Method             CalculationMethod `json:"calculation_method" validate:"required,oneof=percentage fixed"`
	FixedAmount        decimal.Decimal   `json:"fixed_amount"`
	ExemptProgramIDs   []uint            `json:"exempt_program_ids" validate:"unique"`
	ExemptStudentTypes []StudentType     `json:"exempt_student_types" validate:"unique,dive,oneof=regular scholarship sponsored staff"`
	StateRates         []StateRate       `json:"state_rates" validate:"unique=Code,dive"`
	Items              []TaxItem         `json:"items" validate:"unique=Name,dive"`
}

// DefaultTaxConfig is returned until an administrator saves tax settings.
func DefaultTaxConfig() TaxConfig {
	return TaxConfig{
		Enabled:            false,
		Name:               "VAT",
		Rate:               decimal.NewFromFloat(7.5),
		Inclusive:          false,
		Method:             MethodPercentage,
		FixedAmount:        decimal.Zero,
		ExemptProgramIDs:   []uint{},
		ExemptStudentTypes: []StudentType{},
		StateRates:         []StateRate{},
		Items:              []TaxItem{},
	}
}

// Validate checks every invariant of the configuration.
func (c TaxConfig) Validate() error {
	ve := &apperror.ValidationError{}
	checkStruct(ve, c)
	checkPercent(ve, "rate", c.Rate)
	checkNonNegative(ve, "fixed_amount", c.FixedAmount)
	for i, s := range c.StateRates {
		checkPercent(ve, "state_rates["+itoa(i)+"].rate", s.Rate)
	}
	for i, it := range c.Items {
		checkPercent(ve, "items["+itoa(i)+"].rate", it.Rate)
	}
	return ve.OrNil()
}

// IsExempt reports whether the program or student type is exempt from tax.
func (c TaxConfig) IsExempt(programID uint, studentType StudentType) bool {
	if programID != 0 && slices.Contains(c.ExemptProgramIDs, programID) {
		return true
	}
	return studentType != "" && slices.Contains(c.ExemptStudentTypes, studentType)
}

// FindItem looks an item up by name.
func (c TaxConfig) FindItem(name string) (TaxItem, bool) {
	for _, it := range c.Items {
		if it.Name == name {
			return it, true
		}
	}
	return TaxItem{}, false
}

// FindState looks a state rate up by code.
func (c TaxConfig) FindState(code string) (StateRate, bool) {
	for _, s := range c.StateRates {
		if s.Code == code {
			return s, true
		}
	}
	return StateRate{}, false
}

// TaxBreakdown is the result of ComputeTax. All amounts carry two decimals.
type TaxBreakdown struct {
	Rate        decimal.Decimal `json:"rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
}

// ComputeTax splits amount into tax, net and gross. Exemptions are the caller's concern.
//
// Inclusive amounts already contain the tax: tax = amount*rate/(100+rate), gross = amount.
// Exclusive amounts are net: tax = amount*rate/100, gross = amount+tax.
func ComputeTax(amount decimal.Decimal, cfg TaxConfig, item *TaxItem) TaxBreakdown {
	untaxed := TaxBreakdown{
		Rate:        decimal.Zero,
		TaxAmount:   decimal.Zero,
		NetAmount:   round2(amount),
		GrossAmount: round2(amount),
	}
	if !cfg.Enabled || (item != nil && !item.Taxable) {
		return untaxed
	}

	if cfg.Method == MethodFixed {
		return computeFixed(amount, cfg)
	}

	rate := cfg.Rate
	if item != nil {
		rate = item.Rate
	}
	if rate.IsZero() {
		return untaxed
	}

	if cfg.Inclusive {
		tax := round2(amount.Mul(rate).Div(hundred.Add(rate)))
		return TaxBreakdown{
			Rate:        rate,
			TaxAmount:   tax,
			NetAmount:   round2(amount.Sub(tax)),
			GrossAmount: round2(amount),
		}
	}

	tax := round2(amount.Mul(rate).Div(hundred))
	return TaxBreakdown{
		Rate:        rate,
		TaxAmount:   tax,
		NetAmount:   round2(amount),
		GrossAmount: round2(amount.Add(tax)),
	}
}

// computeFixed charges the flat amount once per transaction.
func computeFixed(amount decimal.Decimal, cfg TaxConfig) TaxBreakdown {
	tax := round2(cfg.FixedAmount)
	if cfg.Inclusive {
		if tax.GreaterThan(amount) {
			tax = round2(amount)
		}
		return TaxBreakdown{
			Rate:        decimal.Zero,
			TaxAmount:   tax,
			NetAmount:   round2(amount.Sub(tax)),
			GrossAmount: round2(amount),
		}
	}
	return TaxBreakdown{
		Rate:        decimal.Zero,
		TaxAmount:   tax,
		NetAmount:   round2(amount),
		GrossAmount: round2(amount.Add(tax)),
	}
}
