// API handlers for user/wallet/crypto/agent/escrow/governance operations.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afritokeni/platform/pkg/agents"
	"github.com/afritokeni/platform/pkg/cryptoasset"
	"github.com/afritokeni/platform/pkg/escrow"
	"github.com/afritokeni/platform/pkg/governance"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/users"
	"github.com/afritokeni/platform/pkg/wallet"
)

func now() int64 { return time.Now().Unix() }

// ==================== USER ENDPOINTS ====================

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Phone     string `json:"phone"`
		Principal string `json:"principal"`
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name" binding:"required"`
		Email     string `json:"email"`
		Language  string `json:"language"`
		UserType  string `json:"user_type"`
		Pin       string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	user, err := s.services.Users.Register(s.serviceToken, users.RegisterInput{
		Phone: req.Phone, Principal: req.Principal, FirstName: req.FirstName, LastName: req.LastName,
		Email: req.Email, Language: req.Language, UserType: ledger.UserType(req.UserType), Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleVerifyPin(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Pin    string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := s.services.Users.VerifyPin(s.serviceToken, req.UserID, req.Pin, now()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "valid"})
}

func (s *Server) handleGetBalance(c *gin.Context) {
	userID := c.Param("id")
	currency := c.Query("currency")
	if currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "currency query param is required"})
		return
	}
	balance, err := s.services.Store.GetFiatBalance(s.serviceToken, userID, currency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "currency": currency, "balance": balance})
}

// ==================== WALLET (C3) ====================

func (s *Server) handleTransfer(c *gin.Context) {
	var req struct {
		FromUserID string `json:"from_user_id" binding:"required"`
		ToUserID   string `json:"to_user_id" binding:"required"`
		Amount     uint64 `json:"amount" binding:"required"`
		Currency   string `json:"currency" binding:"required"`
		Pin        string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := s.services.Users.VerifyPin(s.serviceToken, req.FromUserID, req.Pin, now()); err != nil {
		writeError(c, err)
		return
	}

	result, err := s.services.Wallet.Transfer(s.serviceToken, wallet.TransferInput{
		FromUserID: req.FromUserID, ToUserID: req.ToUserID, Amount: req.Amount, Currency: req.Currency, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.wsHub.Broadcast("transaction", "transactions", gin.H{
		"transaction_id": result.TransactionID, "fee": result.Fee, "time": now(),
	})
	c.JSON(http.StatusOK, result)
}

// ==================== AGENTS (C5) ====================

func (s *Server) handleCreateDeposit(c *gin.Context) {
	var req struct {
		UserID   string `json:"user_id" binding:"required"`
		AgentID  string `json:"agent_id" binding:"required"`
		Amount   uint64 `json:"amount" binding:"required"`
		Currency string `json:"currency" binding:"required"`
		Pin      string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	code, err := s.services.Agents.CreateDeposit(s.serviceToken, agents.CreateDepositInput{
		UserID: req.UserID, AgentID: req.AgentID, Amount: req.Amount, Currency: req.Currency, Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

func (s *Server) handleConfirmDeposit(c *gin.Context) {
	var req struct {
		AgentID string `json:"agent_id" binding:"required"`
		Pin     string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	err := s.services.Agents.ConfirmDeposit(s.serviceToken, agents.ConfirmDepositInput{
		Code: c.Param("code"), AgentID: req.AgentID, Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.wsHub.Broadcast("deposit", "transactions", gin.H{"code": c.Param("code"), "status": "confirmed", "time": now()})
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (s *Server) handleCreateWithdrawal(c *gin.Context) {
	var req struct {
		UserID   string `json:"user_id" binding:"required"`
		AgentID  string `json:"agent_id" binding:"required"`
		Amount   uint64 `json:"amount" binding:"required"`
		Currency string `json:"currency" binding:"required"`
		Pin      string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	code, err := s.services.Agents.CreateWithdrawal(s.serviceToken, agents.CreateWithdrawalInput{
		UserID: req.UserID, AgentID: req.AgentID, Amount: req.Amount, Currency: req.Currency, Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

func (s *Server) handleConfirmWithdrawal(c *gin.Context) {
	var req struct {
		AgentID string `json:"agent_id" binding:"required"`
		Pin     string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	err := s.services.Agents.ConfirmWithdrawal(s.serviceToken, agents.ConfirmWithdrawalInput{
		Code: c.Param("code"), AgentID: req.AgentID, Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.wsHub.Broadcast("withdrawal", "transactions", gin.H{"code": c.Param("code"), "status": "confirmed", "time": now()})
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

// ==================== CRYPTO (C4) ====================

func (s *Server) handleCryptoBuy(c *gin.Context) {
	var req struct {
		UserID     string `json:"user_id" binding:"required"`
		FiatAmount uint64 `json:"fiat_amount" binding:"required"`
		Currency   string `json:"currency" binding:"required"`
		CryptoType string `json:"crypto_type" binding:"required"`
		Pin        string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	result, err := s.services.Crypto.Buy(s.serviceToken, cryptoasset.BuyInput{
		UserID: req.UserID, FiatAmount: req.FiatAmount, Currency: req.Currency,
		CryptoType: cryptoasset.CryptoType(req.CryptoType), Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCryptoSell(c *gin.Context) {
	var req struct {
		UserID       string `json:"user_id" binding:"required"`
		CryptoAmount uint64 `json:"crypto_amount" binding:"required"`
		Currency     string `json:"currency" binding:"required"`
		CryptoType   string `json:"crypto_type" binding:"required"`
		Pin          string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	result, err := s.services.Crypto.Sell(s.serviceToken, cryptoasset.SellInput{
		UserID: req.UserID, CryptoAmount: req.CryptoAmount, Currency: req.Currency,
		CryptoType: cryptoasset.CryptoType(req.CryptoType), Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCryptoSend(c *gin.Context) {
	var req struct {
		UserID     string `json:"user_id" binding:"required"`
		ToAddress  string `json:"to_address" binding:"required"`
		Amount     uint64 `json:"amount" binding:"required"`
		CryptoType string `json:"crypto_type" binding:"required"`
		Pin        string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	txID, err := s.services.Crypto.Send(s.serviceToken, cryptoasset.SendInput{
		UserID: req.UserID, ToAddress: req.ToAddress, Amount: req.Amount,
		CryptoType: cryptoasset.CryptoType(req.CryptoType), Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction_id": txID})
}

func (s *Server) handleCryptoSwap(c *gin.Context) {
	var req struct {
		UserID      string `json:"user_id" binding:"required"`
		FromCrypto  string `json:"from_crypto" binding:"required"`
		ToCrypto    string `json:"to_crypto" binding:"required"`
		Amount      uint64 `json:"amount" binding:"required"`
		SlippageBps int64  `json:"slippage_bps"`
		Pin         string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	result, err := s.services.Crypto.Swap(s.serviceToken, cryptoasset.SwapInput{
		UserID: req.UserID, FromCrypto: cryptoasset.CryptoType(req.FromCrypto), ToCrypto: cryptoasset.CryptoType(req.ToCrypto),
		Amount: req.Amount, SlippageBps: req.SlippageBps, Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCryptoBalance(c *gin.Context) {
	check, err := s.services.Crypto.CheckCryptoBalance(s.serviceToken, c.Param("userId"), cryptoasset.CryptoType(c.Param("type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// ==================== ESCROW (C6) ====================

func (s *Server) handleCreateEscrow(c *gin.Context) {
	var req struct {
		UserID     string `json:"user_id" binding:"required"`
		AgentID    string `json:"agent_id" binding:"required"`
		Amount     uint64 `json:"amount" binding:"required"`
		CryptoType string `json:"crypto_type" binding:"required"`
		Pin        string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	t := time.Now()
	code, err := s.services.Escrow.Create(s.serviceToken, escrow.CreateInput{
		UserID: req.UserID, AgentID: req.AgentID, Amount: req.Amount, CryptoType: req.CryptoType,
		Pin: req.Pin, Now: t.Unix(), NowNanos: t.UnixNano(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.wsHub.Broadcast("escrow", "escrows", gin.H{"code": code, "event": "created", "time": now()})
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

func (s *Server) handleClaimEscrow(c *gin.Context) {
	var req struct {
		AgentID string `json:"agent_id" binding:"required"`
		Pin     string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	err := s.services.Escrow.Claim(s.serviceToken, escrow.ClaimInput{
		Code: c.Param("code"), AgentID: req.AgentID, Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.wsHub.Broadcast("escrow", "escrows", gin.H{"code": c.Param("code"), "event": "claimed", "time": now()})
	c.JSON(http.StatusOK, gin.H{"status": "claimed"})
}

func (s *Server) handleCancelEscrow(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Pin    string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	err := s.services.Escrow.Cancel(s.serviceToken, escrow.CancelInput{
		Code: c.Param("code"), UserID: req.UserID, Pin: req.Pin, Now: now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.wsHub.Broadcast("escrow", "escrows", gin.H{"code": c.Param("code"), "event": "cancelled", "time": now()})
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// ==================== GOVERNANCE (C10) ====================

func (s *Server) handleCreateProposal(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	id, err := s.services.Governance.CreateProposal(s.serviceToken, governance.CreateProposalInput{Title: req.Title})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal_id": id})
}

func (s *Server) handleGetProposal(c *gin.Context) {
	proposal, err := s.services.Governance.GetProposal(s.serviceToken, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func (s *Server) handleCastVote(c *gin.Context) {
	var req struct {
		UserID     string `json:"user_id" binding:"required"`
		Support    bool   `json:"support"`
		LockAmount uint64 `json:"lock_amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	err := s.services.Governance.CastVote(s.serviceToken, governance.CastVoteInput{
		ProposalID: c.Param("id"), UserID: req.UserID, Support: req.Support, LockAmount: req.LockAmount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) handleCloseProposal(c *gin.Context) {
	status, err := s.services.Governance.CloseProposal(s.serviceToken, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	s.wsHub.Broadcast("proposal", "proposals", gin.H{"proposal_id": c.Param("id"), "status": status, "time": now()})
	c.JSON(http.StatusOK, gin.H{"status": status})
}
