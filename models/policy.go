package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

// Action keys are stable strings: they appear in POLICY_DENIED error meta
// and in persisted overrides, so renaming one is a migration.
const (
	ActionMatchCreate         = "reconcile.match.create"
	ActionMatchVoid           = "reconcile.match.void"
	ActionGroupCreate         = "reconcile.group.create"
	ActionGroupVoid           = "reconcile.group.void"
	ActionEntryCreate         = "reconcile.entry.create"
	ActionEntryCreateFromBank = "reconcile.entry.create_from_bank"
	ActionClosedThroughUpdate = "reconcile.closed_through.update"
	ActionStatementImport     = "reconcile.statement.import"
	ActionActivityView        = "reconcile.activity.view"
	ActionReconcileView       = "reconcile.view"
)

// defaultPolicies is the compile-time permission table. Overrides can lower
// or raise individual cells per business; anything not listed resolves to
// PolicyLevelNone.
var defaultPolicies = map[UserRole]map[string]PolicyLevel{
	UserRoleOwner: {
		ActionMatchCreate:         PolicyLevelFull,
		ActionMatchVoid:           PolicyLevelFull,
		ActionGroupCreate:         PolicyLevelFull,
		ActionGroupVoid:           PolicyLevelFull,
		ActionEntryCreate:         PolicyLevelFull,
		ActionEntryCreateFromBank: PolicyLevelFull,
		ActionClosedThroughUpdate: PolicyLevelFull,
		ActionStatementImport:     PolicyLevelFull,
		ActionActivityView:        PolicyLevelFull,
		ActionReconcileView:       PolicyLevelFull,
	},
	UserRoleAdmin: {
		ActionMatchCreate:         PolicyLevelFull,
		ActionMatchVoid:           PolicyLevelFull,
		ActionGroupCreate:         PolicyLevelFull,
		ActionGroupVoid:           PolicyLevelFull,
		ActionEntryCreate:         PolicyLevelFull,
		ActionEntryCreateFromBank: PolicyLevelFull,
		ActionClosedThroughUpdate: PolicyLevelFull,
		ActionStatementImport:     PolicyLevelFull,
		ActionActivityView:        PolicyLevelFull,
		ActionReconcileView:       PolicyLevelFull,
	},
	UserRoleBookkeeper: {
		ActionMatchCreate:         PolicyLevelEdit,
		ActionMatchVoid:           PolicyLevelEdit,
		ActionGroupCreate:         PolicyLevelEdit,
		ActionGroupVoid:           PolicyLevelEdit,
		ActionEntryCreate:         PolicyLevelEdit,
		ActionEntryCreateFromBank: PolicyLevelEdit,
		ActionClosedThroughUpdate: PolicyLevelNone,
		ActionStatementImport:     PolicyLevelEdit,
		ActionActivityView:        PolicyLevelView,
		ActionReconcileView:       PolicyLevelView,
	},
	UserRoleViewer: {
		ActionActivityView:  PolicyLevelView,
		ActionReconcileView: PolicyLevelView,
	},
}

// RolePolicyOverride adjusts one cell of the default table for one business.
type RolePolicyOverride struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BusinessId  string    `gorm:"uniqueIndex:uniq_policy_override;size:36;not null" json:"business_id"`
	Role        UserRole  `gorm:"uniqueIndex:uniq_policy_override;size:20;not null" json:"role"`
	ActionKey   string    `gorm:"uniqueIndex:uniq_policy_override;size:80;not null" json:"action_key"`
	PolicyValue int       `gorm:"not null" json:"policy_value"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolvePolicy is pure: the default table plus overrides in, a level out.
func ResolvePolicy(role UserRole, actionKey string, overrides []RolePolicyOverride) PolicyLevel {
	level := PolicyLevelNone
	if table, ok := defaultPolicies[role]; ok {
		if l, ok := table[actionKey]; ok {
			level = l
		}
	}
	for _, o := range overrides {
		if o.Role == role && o.ActionKey == actionKey {
			level = PolicyLevel(o.PolicyValue)
		}
	}
	return level
}

func policyOverridesCacheKey(businessId string) string {
	return fmt.Sprintf("PolicyOverrides:%s", businessId)
}

func getPolicyOverrides(ctx context.Context, businessId string) ([]RolePolicyOverride, error) {
	var overrides []RolePolicyOverride
	if found, err := config.GetRedisObject(policyOverridesCacheKey(businessId), &overrides); err == nil && found {
		return overrides, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Find(&overrides).Error; err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(policyOverridesCacheKey(businessId), overrides, time.Hour)
	return overrides, nil
}

// Authorize resolves the caller's effective level for actionKey and rejects
// with POLICY_DENIED when it falls short.
func Authorize(ctx context.Context, actionKey string, required PolicyLevel) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	roleStr, ok := utils.GetUserRoleFromContext(ctx)
	if !ok || roleStr == "" {
		return ErrUnauthorized("missing role")
	}
	role := UserRole(roleStr)

	overrides, err := getPolicyOverrides(ctx, businessId)
	if err != nil {
		return err
	}
	actual := ResolvePolicy(role, actionKey, overrides)
	if actual < required {
		return ErrPolicyDenied(actionKey, required, actual)
	}
	return nil
}

type NewPolicyOverride struct {
	Role        UserRole `json:"role" binding:"required"`
	ActionKey   string   `json:"action_key" binding:"required"`
	PolicyValue int      `json:"policy_value"`
}

func UpsertPolicyOverride(ctx context.Context, input *NewPolicyOverride) (*RolePolicyOverride, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if input.PolicyValue < int(PolicyLevelNone) || input.PolicyValue > int(PolicyLevelFull) {
		return nil, ErrValidation("policy value out of range")
	}

	db := config.GetDB()
	override := RolePolicyOverride{
		BusinessId:  businessId,
		Role:        input.Role,
		ActionKey:   input.ActionKey,
		PolicyValue: input.PolicyValue,
	}
	err := db.WithContext(ctx).
		Where("business_id = ? AND role = ? AND action_key = ?", businessId, input.Role, input.ActionKey).
		Assign(map[string]interface{}{"policy_value": input.PolicyValue}).
		FirstOrCreate(&override).Error
	if err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(policyOverridesCacheKey(businessId))
	return &override, nil
}
