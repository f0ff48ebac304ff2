package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"academy/internal/apperror"
	"academy/internal/billing"
	"academy/internal/model"
	"academy/internal/repository"

	"github.com/shopspring/decimal"
)

// Tax setting keys. Form fields on the admin settings page use the same names.
const (
	KeyTaxEnabled            = "tax_enabled"
	KeyTaxName               = "tax_name"
	KeyTaxRate               = "tax_rate"
	KeyTaxInclusive          = "tax_inclusive"
	KeyTaxCalculationMethod  = "tax_calculation_method"
	KeyTaxFixedAmount        = "tax_fixed_amount"
	KeyTaxExemptPrograms     = "tax_exempt_programs"
	KeyTaxExemptStudentTypes = "tax_exempt_student_types"
	KeyTaxStateRates         = "tax_state_rates"
	KeyTaxItems              = "tax_items"

	KeyAutomationRules = "automation_rules"
)

// --- Interface ---

type SettingsService interface {
	GetTaxSettings(ctx context.Context) (billing.TaxConfig, error)
	SaveTaxSettings(ctx context.Context, cfg billing.TaxConfig, actor Actor) (billing.TaxConfig, error)

	// GetPenaltySettings creates missing program types with defaults before reading.
	GetPenaltySettings(ctx context.Context) ([]billing.PenaltyPolicy, error)
	GetPenaltyPolicy(ctx context.Context, programType billing.ProgramType) (billing.PenaltyPolicy, error)
	SavePenaltySettings(ctx context.Context, policies []billing.PenaltyPolicy, actor Actor) ([]billing.PenaltyPolicy, error)

	GetAutomationRules(ctx context.Context) (billing.AutomationRules, error)
	SaveAutomationRules(ctx context.Context, rules billing.AutomationRules, actor Actor) (billing.AutomationRules, error)
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	penaltyRepo  repository.PenaltySettingRepository
	activity     ActivityService
}

func NewSettingsService(
	settingsRepo repository.SettingsRepository,
	penaltyRepo repository.PenaltySettingRepository,
	activity ActivityService,
) SettingsService {
	return &settingsService{
		settingsRepo: settingsRepo,
		penaltyRepo:  penaltyRepo,
		activity:     activity,
	}
}

// --- Implementation ---

func (s *settingsService) GetTaxSettings(ctx context.Context) (billing.TaxConfig, error) {
	values, err := s.settingsRepo.GetAll(ctx, model.SettingGroupTax)
	if err != nil {
		return billing.TaxConfig{}, apperror.Persistence("load tax settings", err)
	}
	cfg, err := DecodeTaxSettings(values)
	if err != nil {
		return billing.TaxConfig{}, fmt.Errorf("stored tax settings are malformed: %w", err)
	}
	return cfg, nil
}

func (s *settingsService) SaveTaxSettings(ctx context.Context, cfg billing.TaxConfig, actor Actor) (billing.TaxConfig, error) {
	if err := cfg.Validate(); err != nil {
		return billing.TaxConfig{}, err
	}

	rows, err := encodeTaxSettings(cfg)
	if err != nil {
		return billing.TaxConfig{}, err
	}
	if err := s.settingsRepo.SaveAll(ctx, model.SettingGroupTax, rows); err != nil {
		return billing.TaxConfig{}, apperror.Persistence("save tax settings", err)
	}

	s.activity.Record(ctx, actor, model.ActionSaveTaxSettings, "settings", model.SettingGroupTax, cfg)
	return cfg, nil
}

func (s *settingsService) GetPenaltySettings(ctx context.Context) ([]billing.PenaltyPolicy, error) {
	defaults := make([]model.PenaltySetting, 0, len(billing.ProgramTypes))
	for _, pt := range billing.ProgramTypes {
		defaults = append(defaults, toPenaltySetting(billing.DefaultPenaltyPolicy(pt)))
	}
	if err := s.penaltyRepo.EnsureDefaults(ctx, defaults); err != nil {
		return nil, apperror.Persistence("create default penalty settings", err)
	}

	rows, err := s.penaltyRepo.List(ctx)
	if err != nil {
		return nil, apperror.Persistence("load penalty settings", err)
	}

	policies := make([]billing.PenaltyPolicy, 0, len(rows))
	for _, row := range rows {
		policies = append(policies, toPenaltyPolicy(row))
	}
	return policies, nil
}

func (s *settingsService) GetPenaltyPolicy(ctx context.Context, programType billing.ProgramType) (billing.PenaltyPolicy, error) {
	if _, err := billing.ParseProgramType(string(programType)); err != nil {
		return billing.PenaltyPolicy{}, err
	}
	policies, err := s.GetPenaltySettings(ctx)
	if err != nil {
		return billing.PenaltyPolicy{}, err
	}
	for _, p := range policies {
		if p.ProgramType == programType {
			return p, nil
		}
	}
	return billing.PenaltyPolicy{}, apperror.NotFound("penalty settings for " + string(programType))
}

func (s *settingsService) SavePenaltySettings(ctx context.Context, policies []billing.PenaltyPolicy, actor Actor) ([]billing.PenaltyPolicy, error) {
	if len(policies) == 0 {
		return nil, apperror.Invalid("penalty_settings", "at least one program type is required")
	}

	ve := &apperror.ValidationError{}
	seen := make(map[billing.ProgramType]bool, len(policies))
	rows := make([]model.PenaltySetting, 0, len(policies))
	for _, p := range policies {
		if seen[p.ProgramType] {
			ve.Add(string(p.ProgramType), "submitted more than once")
			continue
		}
		seen[p.ProgramType] = true
		for _, fe := range apperror.Fields(p.Validate()) {
			ve.Add(string(p.ProgramType)+"."+fe.Field, fe.Message)
		}
		rows = append(rows, toPenaltySetting(p))
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	if err := s.penaltyRepo.UpsertAll(ctx, rows); err != nil {
		return nil, apperror.Persistence("save penalty settings", err)
	}

	s.activity.Record(ctx, actor, model.ActionSavePenaltySettings, "settings", "penalty", policies)
	return s.GetPenaltySettings(ctx)
}

func (s *settingsService) GetAutomationRules(ctx context.Context) (billing.AutomationRules, error) {
	values, err := s.settingsRepo.GetAll(ctx, model.SettingGroupAutomation)
	if err != nil {
		return billing.AutomationRules{}, apperror.Persistence("load automation rules", err)
	}
	raw, ok := values[KeyAutomationRules]
	if !ok {
		return billing.DefaultAutomationRules(), nil
	}
	rules, err := DecodeAutomationRules(raw)
	if err != nil {
		return billing.AutomationRules{}, fmt.Errorf("stored automation rules are malformed: %w", err)
	}
	return rules, nil
}

func (s *settingsService) SaveAutomationRules(ctx context.Context, rules billing.AutomationRules, actor Actor) (billing.AutomationRules, error) {
	rules = rules.Normalize()
	if err := rules.Validate(); err != nil {
		return billing.AutomationRules{}, err
	}

	raw, err := json.Marshal(rules)
	if err != nil {
		return billing.AutomationRules{}, fmt.Errorf("failed to encode automation rules: %w", err)
	}
	row := model.SystemSetting{SettingKey: KeyAutomationRules, SettingValue: string(raw), DataType: model.DataTypeJSON}
	if err := s.settingsRepo.SaveAll(ctx, model.SettingGroupAutomation, []model.SystemSetting{row}); err != nil {
		return billing.AutomationRules{}, apperror.Persistence("save automation rules", err)
	}

	s.activity.Record(ctx, actor, model.ActionSaveAutomationRules, "settings", model.SettingGroupAutomation, rules)
	return rules, nil
}

// --- Helpers ---

// DecodeTaxSettings builds a config from flat key/value pairs. Absent keys keep
// their defaults; malformed values are reported per key and the decoded config
// must satisfy TaxConfig.Validate.
func DecodeTaxSettings(values map[string]string) (billing.TaxConfig, error) {
	cfg := billing.DefaultTaxConfig()
	ve := &apperror.ValidationError{}

	if v, ok := values[KeyTaxEnabled]; ok {
		cfg.Enabled = parseFlag(ve, KeyTaxEnabled, v)
	}
	if v, ok := values[KeyTaxName]; ok {
		cfg.Name = strings.TrimSpace(v)
	}
	if v, ok := values[KeyTaxRate]; ok {
		cfg.Rate = parseDecimal(ve, KeyTaxRate, v)
	}
	if v, ok := values[KeyTaxInclusive]; ok {
		cfg.Inclusive = parseFlag(ve, KeyTaxInclusive, v)
	}
	if v, ok := values[KeyTaxCalculationMethod]; ok {
		cfg.Method = billing.CalculationMethod(strings.TrimSpace(v))
	}
	if v, ok := values[KeyTaxFixedAmount]; ok {
		cfg.FixedAmount = parseDecimal(ve, KeyTaxFixedAmount, v)
	}
	if v, ok := values[KeyTaxExemptPrograms]; ok {
		decodeList(ve, KeyTaxExemptPrograms, v, &cfg.ExemptProgramIDs)
	}
	if v, ok := values[KeyTaxExemptStudentTypes]; ok {
		decodeList(ve, KeyTaxExemptStudentTypes, v, &cfg.ExemptStudentTypes)
	}
	if v, ok := values[KeyTaxStateRates]; ok {
		decodeList(ve, KeyTaxStateRates, v, &cfg.StateRates)
	}
	if v, ok := values[KeyTaxItems]; ok {
		decodeList(ve, KeyTaxItems, v, &cfg.Items)
	}

	if err := ve.OrNil(); err != nil {
		return billing.TaxConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return billing.TaxConfig{}, err
	}
	return cfg, nil
}

func encodeTaxSettings(cfg billing.TaxConfig) ([]model.SystemSetting, error) {
	lists := map[string]interface{}{
		KeyTaxExemptPrograms:     cfg.ExemptProgramIDs,
		KeyTaxExemptStudentTypes: cfg.ExemptStudentTypes,
		KeyTaxStateRates:         cfg.StateRates,
		KeyTaxItems:              cfg.Items,
	}
	encoded := make(map[string]string, len(lists))
	for key, list := range lists {
		raw, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		encoded[key] = string(raw)
	}

	return []model.SystemSetting{
		{SettingKey: KeyTaxEnabled, SettingValue: strconv.FormatBool(cfg.Enabled), DataType: model.DataTypeBoolean},
		{SettingKey: KeyTaxName, SettingValue: cfg.Name, DataType: model.DataTypeString},
		{SettingKey: KeyTaxRate, SettingValue: cfg.Rate.String(), DataType: model.DataTypeNumber},
		{SettingKey: KeyTaxInclusive, SettingValue: strconv.FormatBool(cfg.Inclusive), DataType: model.DataTypeBoolean},
		{SettingKey: KeyTaxCalculationMethod, SettingValue: string(cfg.Method), DataType: model.DataTypeString},
		{SettingKey: KeyTaxFixedAmount, SettingValue: cfg.FixedAmount.String(), DataType: model.DataTypeNumber},
		{SettingKey: KeyTaxExemptPrograms, SettingValue: encoded[KeyTaxExemptPrograms], DataType: model.DataTypeJSON},
		{SettingKey: KeyTaxExemptStudentTypes, SettingValue: encoded[KeyTaxExemptStudentTypes], DataType: model.DataTypeJSON},
		{SettingKey: KeyTaxStateRates, SettingValue: encoded[KeyTaxStateRates], DataType: model.DataTypeJSON},
		{SettingKey: KeyTaxItems, SettingValue: encoded[KeyTaxItems], DataType: model.DataTypeJSON},
	}, nil
}

// DecodeAutomationRules parses the stored blob, rejecting unknown fields.
func DecodeAutomationRules(raw string) (billing.AutomationRules, error) {
	var rules billing.AutomationRules
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return billing.AutomationRules{}, apperror.Invalid(KeyAutomationRules, "invalid JSON: "+err.Error())
	}
	rules = rules.Normalize()
	if err := rules.Validate(); err != nil {
		return billing.AutomationRules{}, err
	}
	return rules, nil
}

func parseFlag(ve *apperror.ValidationError, key, v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	case "", "0", "false", "off", "no":
		return false
	}
	ve.Add(key, "must be a boolean")
	return false
}

func parseDecimal(ve *apperror.ValidationError, key, v string) decimal.Decimal {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		ve.Add(key, "must be a number")
		return decimal.Zero
	}
	return d
}

// decodeList strictly decodes a JSON array into dst. An empty value means an empty list.
func decodeList[T any](ve *apperror.ValidationError, key, v string, dst *[]T) {
	v = strings.TrimSpace(v)
	if v == "" {
		*dst = []T{}
		return
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(v)))
	dec.DisallowUnknownFields()
	var out []T
	if err := dec.Decode(&out); err != nil {
		ve.Add(key, "must be a JSON list: "+err.Error())
		return
	}
	if out == nil {
		out = []T{}
	}
	*dst = out
}

func toPenaltySetting(p billing.PenaltyPolicy) model.PenaltySetting {
	return model.PenaltySetting{
		ProgramType:       string(p.ProgramType),
		GracePeriodDays:   p.GracePeriodDays,
		LateFeePercentage: p.LateFeePercentage,
		MinLateFee:        p.MinLateFee,
		MaxLateFee:        p.MaxLateFee,
		DailyPenalty:      p.DailyPenalty,
		SuspensionDays:    p.SuspensionDays,
		IsActive:          p.IsActive,
	}
}

func toPenaltyPolicy(row model.PenaltySetting) billing.PenaltyPolicy {
	return billing.PenaltyPolicy{
		ProgramType:       billing.ProgramType(row.ProgramType),
		GracePeriodDays:   row.GracePeriodDays,
		LateFeePercentage: row.LateFeePercentage,
		MinLateFee:        row.MinLateFee,
		MaxLateFee:        row.MaxLateFee,
		DailyPenalty:      row.DailyPenalty,
		SuspensionDays:    row.SuspensionDays,
		IsActive:          row.IsActive,
	}
}
