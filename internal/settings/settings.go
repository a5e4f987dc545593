// Package settings resolves effective trade policy: per-channel overrides
// layered over per-user defaults, field by field. A nil override falls
// through to the default; there is no deep merge.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"sniper-core/pkg/config"
	"sniper-core/pkg/db"
)

// Settings is the resolved, fully-populated trade policy.
type Settings struct {
	AutoBuyEnabled     bool
	BuyAmountSOL       float64
	BuySlippagePct     float64
	SellSlippagePct    float64
	TPSLEnabled        bool
	TakeProfitPct      float64
	StopLossPct        float64
	DuplicateMintBlock bool
	ConfirmTxEnabled   bool
	CooldownSeconds    int
	MaxTradesPerDay    int
}

// Service reads user defaults from the database and layers channel
// overrides from the database first, then the static YAML policy file.
type Service struct {
	q      *db.Queries
	policy *config.ChannelPolicy
}

func NewService(q *db.Queries, policy *config.ChannelPolicy) *Service {
	return &Service{q: q, policy: policy}
}

// User returns the user's default settings.
func (s *Service) User(ctx context.Context, userID string) (*Settings, error) {
	row, err := s.q.GetSettings(userID)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return fromRow(row), nil
}

// Update persists a full settings row for the user.
func (s *Service) Update(ctx context.Context, userID string, in *Settings) error {
	row := &db.UserSettings{
		UserID:             userID,
		AutoBuyEnabled:     in.AutoBuyEnabled,
		BuyAmountSOL:       in.BuyAmountSOL,
		BuySlippagePct:     in.BuySlippagePct,
		SellSlippagePct:    in.SellSlippagePct,
		TPSLEnabled:        in.TPSLEnabled,
		TakeProfitPct:      in.TakeProfitPct,
		StopLossPct:        in.StopLossPct,
		DuplicateMintBlock: in.DuplicateMintBlock,
		ConfirmTxEnabled:   in.ConfirmTxEnabled,
		CooldownSeconds:    in.CooldownSeconds,
		MaxTradesPerDay:    in.MaxTradesPerDay,
	}
	return s.q.UpdateSettings(row)
}

// Effective resolves the policy for a user acting on a channel's signal.
// channelID 0 means no channel context, so user defaults apply as-is.
func (s *Service) Effective(ctx context.Context, userID string, channelID int64) (*Settings, error) {
	out, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if channelID == 0 {
		return out, nil
	}

	cs, err := s.q.GetChannelSettings(userID, channelID)
	switch {
	case err == nil:
		applyRowOverride(out, cs)
		return out, nil
	case errors.Is(err, db.ErrNotFound):
		// fall through to the file policy
	default:
		return nil, fmt.Errorf("channel settings: %w", err)
	}

	if s.policy != nil {
		if ov, ok := s.policy.Channels[strconv.FormatInt(channelID, 10)]; ok {
			applyFileOverride(out, &ov)
		}
	}
	return out, nil
}

// applyRowOverride layers the nullable db columns; NULL means "keep the
// user default".
func applyRowOverride(out *Settings, cs *db.ChannelSettings) {
	if cs.AutoBuyEnabled.Valid {
		out.AutoBuyEnabled = cs.AutoBuyEnabled.Bool
	}
	if cs.BuyAmountSOL.Valid {
		out.BuyAmountSOL = cs.BuyAmountSOL.Float64
	}
	if cs.BuySlippagePct.Valid {
		out.BuySlippagePct = cs.BuySlippagePct.Float64
	}
	if cs.SellSlippagePct.Valid {
		out.SellSlippagePct = cs.SellSlippagePct.Float64
	}
	if cs.TPSLEnabled.Valid {
		out.TPSLEnabled = cs.TPSLEnabled.Bool
	}
	if cs.TakeProfitPct.Valid {
		out.TakeProfitPct = cs.TakeProfitPct.Float64
	}
	if cs.StopLossPct.Valid {
		out.StopLossPct = cs.StopLossPct.Float64
	}
	if cs.ConfirmTxEnabled.Valid {
		out.ConfirmTxEnabled = cs.ConfirmTxEnabled.Bool
	}
}

// applyFileOverride layers the YAML channel policy; nil pointers fall
// through to the user default.
func applyFileOverride(out *Settings, ov *config.ChannelOverride) {
	if ov.AutoBuyEnabled != nil {
		out.AutoBuyEnabled = *ov.AutoBuyEnabled
	}
	if ov.BuyAmountSOL != nil {
		out.BuyAmountSOL = *ov.BuyAmountSOL
	}
	if ov.BuySlippagePct != nil {
		out.BuySlippagePct = *ov.BuySlippagePct
	}
	if ov.SellSlippagePct != nil {
		out.SellSlippagePct = *ov.SellSlippagePct
	}
	if ov.TPSLEnabled != nil {
		out.TPSLEnabled = *ov.TPSLEnabled
	}
	if ov.TakeProfitPct != nil {
		out.TakeProfitPct = *ov.TakeProfitPct
	}
	if ov.StopLossPct != nil {
		out.StopLossPct = *ov.StopLossPct
	}
	if ov.ConfirmTxEnabled != nil {
		out.ConfirmTxEnabled = *ov.ConfirmTxEnabled
	}
}

func fromRow(row *db.UserSettings) *Settings {
	return &Settings{
		AutoBuyEnabled:     row.AutoBuyEnabled,
		BuyAmountSOL:       row.BuyAmountSOL,
		BuySlippagePct:     row.BuySlippagePct,
		SellSlippagePct:    row.SellSlippagePct,
		TPSLEnabled:        row.TPSLEnabled,
		TakeProfitPct:      row.TakeProfitPct,
		StopLossPct:        row.StopLossPct,
		DuplicateMintBlock: row.DuplicateMintBlock,
		ConfirmTxEnabled:   row.ConfirmTxEnabled,
		CooldownSeconds:    row.CooldownSeconds,
		MaxTradesPerDay:    row.MaxTradesPerDay,
	}
}
