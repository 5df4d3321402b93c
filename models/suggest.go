package models

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/agnivade/levenshtein"
)

type MatchSuggestion struct {
	Entry *Entry  `json:"entry"`
	Score float64 `json:"score"`
}

// suggestionScore weighs amount equality, date proximity and description
// similarity into [0, 1]. Amount dominates: an exact-amount candidate always
// outranks any inexact one.
func suggestionScore(bankAmount Cents, bankDate DateOnly, bankDesc string, entry *Entry) float64 {
	var score float64
	if entry.AmountCents == bankAmount {
		score += 0.6
	}

	days := math.Abs(bankDate.Time().Sub(entry.EntryDate.Time()).Hours() / 24)
	switch {
	case days <= 1:
		score += 0.25
	case days <= 7:
		score += 0.25 * (1 - (days-1)/6)
	}

	score += 0.15 * descriptionSimilarity(bankDesc, entry.Payee)
	return score
}

func descriptionSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 1 - float64(dist)/float64(longest)
}

// SuggestMatches ranks unmatched same-direction entries in the bank
// transaction's account. Candidates dated within 30 days of the posted date
// are considered.
func SuggestMatches(ctx context.Context, bankTxnId int, limit int) ([]*MatchSuggestion, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if limit <= 0 || limit > 20 {
		limit = 5
	}

	bankTxn, err := utils.FetchModel[BankTransaction](ctx, businessId, bankTxnId)
	if err != nil {
		return nil, err
	}
	if err := assertBankTxnUnclaimed(ctx, businessId, bankTxn); err != nil {
		return nil, err
	}

	windowStart := bankTxn.PostedDate.Time().AddDate(0, 0, -30)
	windowEnd := bankTxn.PostedDate.Time().AddDate(0, 0, 30)
	amountCond := "amount_cents > 0"
	if bankTxn.AmountCents < 0 {
		amountCond = "amount_cents < 0"
	}

	db := config.GetDB()
	var candidates []*Entry
	err = db.WithContext(ctx).Model(&Entry{}).
		Where("business_id = ? AND account_id = ? AND is_adjustment = ?", businessId, bankTxn.AccountId, false).
		Where(amountCond).
		Where("entry_date BETWEEN ? AND ?", windowStart, windowEnd).
		Where("id NOT IN (?)", db.Model(&BankMatch{}).Select("entry_id").
			Where("business_id = ? AND is_voided = ?", businessId, false)).
		Where("id NOT IN (?)", db.Model(&MatchClaim{}).Select("resource_id").
			Where("business_id = ? AND resource_type = ?", businessId, ClaimResourceEntry)).
		Limit(500).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	suggestions := make([]*MatchSuggestion, 0, len(candidates))
	for _, entry := range candidates {
		score := suggestionScore(bankTxn.AmountCents, bankTxn.PostedDate, bankTxn.Description, entry)
		if score <= 0 {
			continue
		}
		suggestions = append(suggestions, &MatchSuggestion{Entry: entry, Score: score})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}
