package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/history"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/sparks"
	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	ConversationID string   `json:"conversation_id"`
	ModelID        string   `json:"model_id" binding:"required"`
	Content        string   `json:"content" binding:"required"`
	Attachments    []string `json:"attachments"`
}

func (s *Server) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.orch.Send(c.Request.Context(), chat.SendRequest{
		UserID:         userID(c),
		ConversationID: req.ConversationID,
		ModelID:        req.ModelID,
		Content:        req.Content,
		Attachments:    req.Attachments,
	})
	if err != nil {
		s.writeSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": resp.ConversationID,
		"message":         resp.Message,
	})
}

// writeSendError maps the turn's failure class onto a status the caller can
// act on: blocked turns are retryable after topping up, validation failures
// are not, everything else is a server-side fault.
func (s *Server) writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sparks.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "out of sparks", "code": "insufficient_balance"})
	case errors.Is(err, sparks.ErrUnknownModel), errors.Is(err, chat.ErrEmptyUserMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrToolLoopExceeded):
		c.JSON(http.StatusBadGateway, gin.H{"error": "the assistant could not finish this request", "code": "tool_loop_exceeded"})
	default:
		s.logger.Error().Err(err).Msg("send message failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) getHistoryPage(c *gin.Context) {
	limit := history.DefaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	page, err := s.store.Page(c.Request.Context(), c.Param("id"), limit, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, history.ErrBadCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error().Err(err).Msg("history page failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := gin.H{"messages": page.Messages}
	if page.NextCursor != "" {
		resp["next_cursor"] = page.NextCursor
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getBalance(c *gin.Context) {
	b, err := s.ledger.GetBalance(c.Request.Context(), userID(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("get balance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current_sparks":  b.Current,
		"can_claim_today": s.ledger.CanClaimToday(b),
		"is_verified":     b.IsVerified,
		"last_claim_at":   b.LastClaimDate,
	})
}

type estimateRequest struct {
	ModelID      string `json:"model_id" binding:"required"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

func (s *Server) estimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.InputTokens < 0 || req.OutputTokens < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token counts must be non-negative"})
		return
	}

	cost, err := s.ledger.Estimate(req.ModelID, req.InputTokens, req.OutputTokens)
	if err != nil {
		if errors.Is(err, sparks.ErrUnknownModel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"estimated_cost": cost,
		"model_id":       req.ModelID,
		"input_tokens":   req.InputTokens,
		"output_tokens":  req.OutputTokens,
	})
}

func (s *Server) claimDaily(c *gin.Context) {
	tx, err := s.ledger.ClaimDaily(c.Request.Context(), userID(c))
	if err != nil {
		if errors.Is(err, sparks.ErrAlreadyClaimedToday) {
			// Benign: the client shows "come back tomorrow", not an error.
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "already_claimed"})
			return
		}
		s.logger.Error().Err(err).Msg("daily claim failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granted":     tx.Amount,
		"new_balance": tx.BalanceAfter,
		"transaction": tx,
	})
}

func (s *Server) getTransactions(c *gin.Context) {
	log, err := s.ledger.Transactions(c.Request.Context(), userID(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("list transactions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": log})
}
