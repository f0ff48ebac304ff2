package service

import (
	"context"
	"strings"

	"academy/internal/apperror"
	"academy/internal/billing"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type QuoteRequest struct {
	Amount      string `form:"amount" json:"amount" binding:"required"`
	ProgramID   uint   `form:"program_id" json:"program_id"`
	StudentType string `form:"student_type" json:"student_type"`
	Item        string `form:"item" json:"item"`             // name of a configured tax item
	StateCode   string `form:"state_code" json:"state_code"` // code of a configured state rate
}

type QuoteResponse struct {
	TaxName     string `json:"tax_name"`
	Method      string `json:"calculation_method"`
	Inclusive   bool   `json:"inclusive"`
	Exempt      bool   `json:"exempt"`
	Rate        string `json:"rate"`
	Amount      string `json:"amount"`
	TaxAmount   string `json:"tax_amount"`
	NetAmount   string `json:"net_amount"`
	GrossAmount string `json:"gross_amount"`
}

// --- Interface ---

type TaxService interface {
	Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error)
}

type taxService struct {
	settings SettingsService
}

func NewTaxService(settings SettingsService) TaxService {
	return &taxService{settings: settings}
}

// --- Implementation ---

// Quote applies exemptions, then the item or state rate, then the base configuration.
func (s *taxService) Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return QuoteResponse{}, apperror.Invalid("amount", "must be a number")
	}
	if amount.IsNegative() {
		return QuoteResponse{}, apperror.Invalid("amount", "must not be negative")
	}

	cfg, err := s.settings.GetTaxSettings(ctx)
	if err != nil {
		return QuoteResponse{}, err
	}

	var item *billing.TaxItem
	if req.Item != "" {
		found, ok := cfg.FindItem(req.Item)
		if !ok {
			return QuoteResponse{}, apperror.Invalid("item", "unknown tax item "+req.Item)
		}
		item = &found
	}
	if req.StateCode != "" {
		state, ok := cfg.FindState(req.StateCode)
		if !ok {
			return QuoteResponse{}, apperror.Invalid("state_code", "unknown state "+req.StateCode)
		}
		cfg.Rate = state.Rate
	}

	exempt := cfg.Enabled && cfg.IsExempt(req.ProgramID, billing.StudentType(req.StudentType))
	effective := cfg
	if exempt {
		effective.Enabled = false
	}

	bd := billing.ComputeTax(amount, effective, item)
	return QuoteResponse{
		TaxName:     cfg.Name,
		Method:      string(cfg.Method),
		Inclusive:   cfg.Inclusive,
		Exempt:      exempt,
		Rate:        bd.Rate.StringFixed(2),
		Amount:      amount.StringFixed(2),
		TaxAmount:   bd.TaxAmount.StringFixed(2),
		NetAmount:   bd.NetAmount.StringFixed(2),
		GrossAmount: bd.GrossAmount.StringFixed(2),
	}, nil
}
