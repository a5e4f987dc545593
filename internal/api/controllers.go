package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sniper-core/internal/executor"
	"sniper-core/internal/ledger"
	"sniper-core/internal/settings"
	"sniper-core/internal/wallet"
	"sniper-core/pkg/db"
	"sniper-core/pkg/pump"
)

type positionResponse struct {
	Mint             string  `json:"mint"`
	TokenBalance     float64 `json:"token_balance"`
	AvgEntrySOL      float64 `json:"avg_entry_sol"`
	TotalSpentSOL    float64 `json:"total_spent_sol"`
	TotalReceivedSOL float64 `json:"total_received_sol"`
	RealizedPnLSOL   float64 `json:"realized_pnl_sol"`
	Open             bool    `json:"open"`
	UpdatedAt        string  `json:"updated_at"`
}

func (s *Server) getPositions(c *gin.Context) {
	userID := CurrentUserID(c)
	openOnly := c.Query("open") == "true"

	rows, err := s.Q.ListPositions(userID, openOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	out := make([]positionResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, positionResponse{
			Mint:             p.Mint,
			TokenBalance:     p.TokenBalance,
			AvgEntrySOL:      p.AvgEntrySOL,
			TotalSpentSOL:    p.TotalSpentSOL,
			TotalReceivedSOL: p.TotalReceivedSOL,
			RealizedPnLSOL:   p.RealizedPnLSOL,
			Open:             p.Open,
			UpdatedAt:        p.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

type tradeResponse struct {
	ID          string  `json:"id"`
	Mint        string  `json:"mint"`
	Side        string  `json:"side"`
	TokenAmount float64 `json:"token_amount"`
	SOLAmount   float64 `json:"sol_amount"`
	PriceSOL    float64 `json:"price_sol"`
	TxSig       string  `json:"tx_sig,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func (s *Server) getTrades(c *gin.Context) {
	userID := CurrentUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	rows, err := s.Q.ListTrades(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	out := make([]tradeResponse, 0, len(rows))
	for _, t := range rows {
		out = append(out, tradeResponse{
			ID:          t.ID,
			Mint:        t.Mint,
			Side:        t.Side,
			TokenAmount: t.TokenAmount,
			SOLAmount:   t.SOLAmount,
			PriceSOL:    t.PriceSOL,
			TxSig:       t.TxSig,
			CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

type intentResponse struct {
	Signature       string   `json:"signature"`
	Mint            string   `json:"mint"`
	Side            string   `json:"side"`
	Status          string   `json:"status"`
	RequestedTokens *float64 `json:"requested_tokens,omitempty"`
	RequestedSOL    *float64 `json:"requested_sol,omitempty"`
	ActualTokens    *float64 `json:"actual_tokens,omitempty"`
	ActualSOL       *float64 `json:"actual_sol,omitempty"`
	Error           string   `json:"error,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

func (s *Server) getIntents(c *gin.Context) {
	userID := CurrentUserID(c)
	status := c.DefaultQuery("status", db.StatusPending)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := s.Q.ListPendingTrades(userID, status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	out := make([]intentResponse, 0, len(rows))
	for _, pt := range rows {
		r := intentResponse{
			Signature: pt.Signature,
			Mint:      pt.Mint,
			Side:      pt.Side,
			Status:    pt.Status,
			Error:     pt.Error.String,
			CreatedAt: pt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if pt.RequestedTokenAmount.Valid {
			r.RequestedTokens = &pt.RequestedTokenAmount.Float64
		}
		if pt.RequestedSOLAmount.Valid {
			r.RequestedSOL = &pt.RequestedSOLAmount.Float64
		}
		if pt.ActualTokenAmount.Valid {
			r.ActualTokens = &pt.ActualTokenAmount.Float64
		}
		if pt.ActualSOLAmount.Valid {
			r.ActualSOL = &pt.ActualSOLAmount.Float64
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSignals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := s.Q.RecentSignals(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	type signalResponse struct {
		ChannelID  int64  `json:"channel_id"`
		Mint       string `json:"mint"`
		Confidence int    `json:"confidence"`
		CreatedAt  string `json:"created_at"`
	}
	out := make([]signalResponse, 0, len(rows))
	for _, sig := range rows {
		out = append(out, signalResponse{
			ChannelID:  sig.ChannelID,
			Mint:       sig.Mint,
			Confidence: sig.Confidence,
			CreatedAt:  sig.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

type settingsBody struct {
	AutoBuyEnabled     bool    `json:"auto_buy_enabled"`
	BuyAmountSOL       float64 `json:"buy_amount_sol"`
	BuySlippagePct     float64 `json:"buy_slippage_pct"`
	SellSlippagePct    float64 `json:"sell_slippage_pct"`
	TPSLEnabled        bool    `json:"tp_sl_enabled"`
	TakeProfitPct      float64 `json:"take_profit_pct"`
	StopLossPct        float64 `json:"stop_loss_pct"`
	DuplicateMintBlock bool    `json:"duplicate_mint_block"`
	ConfirmTxEnabled   bool    `json:"confirm_tx_enabled"`
	CooldownSeconds    int     `json:"cooldown_seconds"`
	MaxTradesPerDay    int     `json:"max_trades_per_day"`
}

func (s *Server) getSettings(c *gin.Context) {
	cfg, err := s.Settings.User(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settingsBody{
		AutoBuyEnabled:     cfg.AutoBuyEnabled,
		BuyAmountSOL:       cfg.BuyAmountSOL,
		BuySlippagePct:     cfg.BuySlippagePct,
		SellSlippagePct:    cfg.SellSlippagePct,
		TPSLEnabled:        cfg.TPSLEnabled,
		TakeProfitPct:      cfg.TakeProfitPct,
		StopLossPct:        cfg.StopLossPct,
		DuplicateMintBlock: cfg.DuplicateMintBlock,
		ConfirmTxEnabled:   cfg.ConfirmTxEnabled,
		CooldownSeconds:    cfg.CooldownSeconds,
		MaxTradesPerDay:    cfg.MaxTradesPerDay,
	})
}

func (s *Server) putSettings(c *gin.Context) {
	var req settingsBody
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "invalid request payload"})
		return
	}
	if req.BuyAmountSOL < 0 || req.BuySlippagePct < 0 || req.SellSlippagePct < 0 ||
		req.TakeProfitPct < 0 || req.StopLossPct < 0 || req.CooldownSeconds < 0 || req.MaxTradesPerDay < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "error": "settings values must be non-negative"})
		return
	}

	err := s.Settings.Update(c.Request.Context(), CurrentUserID(c), &settings.Settings{
		AutoBuyEnabled:     req.AutoBuyEnabled,
		BuyAmountSOL:       req.BuyAmountSOL,
		BuySlippagePct:     req.BuySlippagePct,
		SellSlippagePct:    req.SellSlippagePct,
		TPSLEnabled:        req.TPSLEnabled,
		TakeProfitPct:      req.TakeProfitPct,
		StopLossPct:        req.StopLossPct,
		DuplicateMintBlock: req.DuplicateMintBlock,
		ConfirmTxEnabled:   req.ConfirmTxEnabled,
		CooldownSeconds:    req.CooldownSeconds,
		MaxTradesPerDay:    req.MaxTradesPerDay,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) putWallet(c *gin.Context) {
	var req struct {
		Pubkey string `json:"pubkey"`
	}
	if err := c.BindJSON(&req); err != nil || req.Pubkey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "pubkey is required"})
		return
	}
	if err := s.Wallets.Register(CurrentUserID(c), req.Pubkey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PUBKEY", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

func (s *Server) putTelegram(c *gin.Context) {
	var req struct {
		ChatID int64 `json:"chat_id"`
	}
	if err := c.BindJSON(&req); err != nil || req.ChatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "chat_id is required"})
		return
	}
	if err := s.Q.SetTelegramChatID(CurrentUserID(c), req.ChatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "linked"})
}

func (s *Server) subscribeChannel(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_CHANNEL", "error": "channel id must be numeric"})
		return
	}
	var req struct {
		Handle string `json:"handle"`
	}
	_ = c.BindJSON(&req)
	if req.Handle != "" {
		if err := s.Q.UpsertChannel(channelID, req.Handle); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
			return
		}
	}
	if err := s.Q.Subscribe(CurrentUserID(c), channelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "subscribed"})
}

func (s *Server) unsubscribeChannel(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_CHANNEL", "error": "channel id must be numeric"})
		return
	}
	if err := s.Q.Unsubscribe(CurrentUserID(c), channelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}

func (s *Server) postBuy(c *gin.Context) {
	var req struct {
		Mint        string  `json:"mint"`
		SOLAmount   float64 `json:"sol_amount"`
		SlippagePct float64 `json:"slippage_pct"`
	}
	if err := c.BindJSON(&req); err != nil || req.Mint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "mint is required"})
		return
	}

	sub, err := s.Trader.SubmitBuy(c.Request.Context(), executor.BuyRequest{
		UserID:      CurrentUserID(c),
		Mint:        req.Mint,
		SOLAmount:   req.SOLAmount,
		SlippagePct: req.SlippagePct,
		ForceBuy:    true, // manual trades bypass the auto-buy switch
	})
	if err != nil {
		s.tradeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"signature": sub.Signature,
		"mint":      sub.Mint,
	})
}

func (s *Server) postSell(c *gin.Context) {
	var req struct {
		Mint        string  `json:"mint"`
		TokenAmount float64 `json:"token_amount"` // 0 sells the full position
	}
	if err := c.BindJSON(&req); err != nil || req.Mint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "mint is required"})
		return
	}

	sub, err := s.Trader.SubmitSell(c.Request.Context(), CurrentUserID(c), req.Mint, req.TokenAmount)
	if err != nil {
		s.tradeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"signature": sub.Signature,
		"mint":      sub.Mint,
	})
}

func (s *Server) postMessage(c *gin.Context) {
	var req struct {
		ChannelID int64  `json:"channel_id"`
		Handle    string `json:"handle"`
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
	}
	if err := c.BindJSON(&req); err != nil || req.ChannelID == 0 || req.MessageID == 0 || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "channel_id, message_id and text are required"})
		return
	}

	if err := s.Ingest.HandleMessage(c.Request.Context(), req.ChannelID, req.Handle, req.MessageID, req.Text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (s *Server) postSweep(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
		Limit  int    `json:"limit"`
	}
	_ = c.BindJSON(&req)

	resolved, err := s.Sweeper.Sweep(c.Request.Context(), req.Status, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": resolved})
}

// tradeError maps the executor's policy and venue errors to HTTP codes.
func (s *Server) tradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wallet.ErrNoWallet):
		c.JSON(http.StatusBadRequest, gin.H{"code": "NO_WALLET", "error": "register a wallet first"})
	case errors.Is(err, ledger.ErrNoOpenPosition):
		c.JSON(http.StatusBadRequest, gin.H{"code": "NO_OPEN_POSITION", "error": "no open position in this mint"})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INSUFFICIENT_BALANCE", "error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_AMOUNT", "error": err.Error()})
	case errors.Is(err, executor.ErrAutoBuyDisabled):
		c.JSON(http.StatusForbidden, gin.H{"code": "AUTO_BUY_DISABLED", "error": err.Error()})
	case errors.Is(err, pump.ErrCurveComplete):
		c.JSON(http.StatusConflict, gin.H{"code": "CURVE_COMPLETE", "error": pump.FormatTxError(err)})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"code": "SUBMIT_FAILED", "error": pump.FormatTxError(err)})
	}
}
