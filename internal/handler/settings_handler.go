package handler

import (
	"net/http"
	"strconv"
	"strings"

	"academy/internal/apperror"
	"academy/internal/billing"
	"academy/internal/middleware"
	"academy/internal/service"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Form actions accepted by POST /api/admin/settings.
const (
	ActionSaveTax        = "save_tax_settings"
	ActionSavePenalty    = "save_penalty_settings"
	ActionSaveAutomation = "save_automation_settings"
)

var taxFormKeys = []string{
	service.KeyTaxEnabled,
	service.KeyTaxName,
	service.KeyTaxRate,
	service.KeyTaxInclusive,
	service.KeyTaxCalculationMethod,
	service.KeyTaxFixedAmount,
	service.KeyTaxExemptPrograms,
	service.KeyTaxExemptStudentTypes,
	service.KeyTaxStateRates,
	service.KeyTaxItems,
}

type SettingsHandler struct {
	settingsService service.SettingsService
	auth            *middleware.Authenticator
}

func NewSettingsHandler(settingsService service.SettingsService, auth *middleware.Authenticator) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, auth: auth}
}

func (h *SettingsHandler) RegisterRoutes(router *gin.RouterGroup) {
	settings := router.Group("/api/admin/settings")
	settings.Use(h.auth.RequireRole(middleware.RoleAdmin))
	{
		settings.GET("/tax", h.GetTaxSettings)
		settings.GET("/penalty", h.GetPenaltySettings)
		settings.GET("/automation", h.GetAutomationRules)
		settings.POST("", h.SaveSettings)
	}
}

// GetTaxSettings returns the current tax configuration
// @Summary      Get tax settings
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=billing.TaxConfig}
// @Router       /api/admin/settings/tax [get]
func (h *SettingsHandler) GetTaxSettings(c *gin.Context) {
	cfg, err := h.settingsService.GetTaxSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Tax settings", cfg))
}

// GetPenaltySettings returns one policy per program type
// @Summary      Get penalty settings
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]billing.PenaltyPolicy}
// @Router       /api/admin/settings/penalty [get]
func (h *SettingsHandler) GetPenaltySettings(c *gin.Context) {
	policies, err := h.settingsService.GetPenaltySettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Penalty settings", policies))
}

// @Summary      Get automation rules
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=billing.AutomationRules}
// @Router       /api/admin/settings/automation [get]
func (h *SettingsHandler) GetAutomationRules(c *gin.Context) {
	rules, err := h.settingsService.GetAutomationRules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Automation rules", rules))
}

// SaveSettings dispatches the settings form on its action field
// @Summary      Save settings
// @Description  Form-encoded. action selects the group: save_tax_settings, save_penalty_settings or save_automation_settings
// @Tags         settings
// @Security     BearerAuth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        action  formData  string  true  "Settings group to save"
// @Success      200     {object}  response.Response
// @Failure      400     {object}  response.Response
// @Failure      422     {object}  response.Response
// @Router       /api/admin/settings [post]
func (h *SettingsHandler) SaveSettings(c *gin.Context) {
	ctx := c.Request.Context()
	actor := actorFrom(c)

	switch action := c.PostForm("action"); action {
	case ActionSaveTax:
		values := make(map[string]string, len(taxFormKeys))
		for _, key := range taxFormKeys {
			if v, ok := c.GetPostForm(key); ok {
				values[key] = v
			}
		}
		cfg, err := service.DecodeTaxSettings(values)
		if err != nil {
			respondError(c, err)
			return
		}
		saved, err := h.settingsService.SaveTaxSettings(ctx, cfg, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success("Tax settings saved", saved))

	case ActionSavePenalty:
		policies, err := penaltyPoliciesFromForm(c)
		if err != nil {
			respondError(c, err)
			return
		}
		saved, err := h.settingsService.SavePenaltySettings(ctx, policies, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success("Penalty settings saved", saved))

	case ActionSaveAutomation:
		rules, err := automationRulesFromForm(c)
		if err != nil {
			respondError(c, err)
			return
		}
		saved, err := h.settingsService.SaveAutomationRules(ctx, rules, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success("Automation rules saved", saved))

	default:
		c.JSON(http.StatusBadRequest, response.Error("Unknown settings action "+strconv.Quote(action)))
	}
}

// penaltyPoliciesFromForm reads <program_type>_<field> inputs. A program type
// is submitted when its grace period field is present.
func penaltyPoliciesFromForm(c *gin.Context) ([]billing.PenaltyPolicy, error) {
	ve := &apperror.ValidationError{}
	var policies []billing.PenaltyPolicy

	for _, pt := range billing.ProgramTypes {
		prefix := string(pt) + "_"
		if _, ok := c.GetPostForm(prefix + "grace_period_days"); !ok {
			continue
		}
		policies = append(policies, billing.PenaltyPolicy{
			ProgramType:       pt,
			GracePeriodDays:   formInt(c, ve, prefix+"grace_period_days"),
			LateFeePercentage: formDecimal(c, ve, prefix+"late_fee_percentage"),
			MinLateFee:        formDecimal(c, ve, prefix+"min_late_fee"),
			MaxLateFee:        formDecimal(c, ve, prefix+"max_late_fee"),
			DailyPenalty:      formDecimal(c, ve, prefix+"daily_penalty"),
			SuspensionDays:    formInt(c, ve, prefix+"suspension_days"),
			IsActive:          formFlag(c, prefix+"is_active"),
		})
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	return policies, nil
}

// automationRulesFromForm treats absent checkboxes as off. reminder_days may be
// repeated or comma separated.
func automationRulesFromForm(c *gin.Context) (billing.AutomationRules, error) {
	ve := &apperror.ValidationError{}
	rules := billing.AutomationRules{
		AutoReminders:        formFlag(c, "auto_reminders"),
		AutoSuspension:       formFlag(c, "auto_suspension"),
		AutoLateFees:         formFlag(c, "auto_late_fees"),
		AutoInvoices:         formFlag(c, "auto_invoices"),
		BlockAutoProgression: formFlag(c, "block_auto_progression"),
		ReminderDays:         []int{},
	}

	for _, raw := range c.PostFormArray("reminder_days") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				ve.Add("reminder_days", "must be whole numbers")
				continue
			}
			rules.ReminderDays = append(rules.ReminderDays, n)
		}
	}
	return rules, ve.OrNil()
}

func formFlag(c *gin.Context, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.PostForm(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func formInt(c *gin.Context, ve *apperror.ValidationError, key string) int {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		ve.Add(key, "is required")
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		ve.Add(key, "must be a whole number")
	}
	return n
}

func formDecimal(c *gin.Context, ve *apperror.ValidationError, key string) decimal.Decimal {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		ve.Add(key, "must be a number")
		return decimal.Zero
	}
	return d
}
