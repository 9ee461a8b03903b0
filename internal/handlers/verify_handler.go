package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"nftverify/internal/services"
)

type VerifyHandler struct {
	Verif *services.VerificationService
}

func NewVerifyHandler(v *services.VerificationService) *VerifyHandler {
	return &VerifyHandler{Verif: v}
}

// @Summary      Проверка токена верификации
// @Description  Проверяет, что токен существует и не истёк
// @Tags         Verify
// @Produce      json
// @Param        token  query     string  true  "Токен из ссылки"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      410    {object}  map[string]string
// @Router       /api/check-token [get]
func (h *VerifyHandler) CheckToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	rec, err := h.Verif.CheckToken(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid or expired token"})
		case errors.Is(err, services.ErrTokenExpired):
			c.JSON(http.StatusGone, gin.H{"error": "Token has expired. Please run /verifymonadversenft again in Discord."})
		default:
			log.Printf("[api][check-token][err] %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	resp := gin.H{"valid": true, "alreadyVerified": rec.HasWallet()}
	if rec.HasWallet() {
		resp["wallet"] = rec.MaskedWallet()
	} else {
		resp["wallet"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

type verifyRequest struct {
	Token     string `json:"token" binding:"required"`
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// @Summary      Верификация кошелька
// @Description  Проверяет подпись и владение NFT, выдаёт роль холдера
// @Tags         Verify
// @Accept       json
// @Produce      json
// @Param        body  body      verifyRequest  true  "Токен, адрес и подпись"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]interface{}
// @Failure      404   {object}  map[string]string
// @Failure      410   {object}  map[string]string
// @Failure      500   {object}  map[string]interface{}
// @Router       /api/verify [post]
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: token, address, signature"})
		return
	}

	result, err := h.Verif.Verify(c.Request.Context(), req.Token, req.Address, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid or expired token"})
		case errors.Is(err, services.ErrTokenExpired):
			c.JSON(http.StatusGone, gin.H{"error": "Token has expired. Please run /verifymonadversenft again in Discord."})
		case errors.Is(err, services.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		case errors.Is(err, services.ErrAddressMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature does not match the provided address"})
		case errors.Is(err, services.ErrBadAddress):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		case errors.Is(err, services.ErrNoHoldings):
			c.JSON(http.StatusForbidden, gin.H{"error": "no holdings", "balance": 0})
		case errors.Is(err, services.ErrOracle):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check NFT balance. Please try again."})
		case errors.Is(err, services.ErrRoleAssign):
			// подпись и баланс прошли, запись в БД есть — об этом честно говорим
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":    "Verified but failed to assign role. Please contact an admin.",
				"verified": true,
			})
		default:
			log.Printf("[api][verify][err] %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred. Please try again."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Verification successful! You now have the Monadverse Holder role.",
		"balance": balanceJSON(result),
		"wallet":  result.Wallet,
	})
}

// баланс ERC-721 на практике всегда влезает в int64, но json-у
// переполниться не даём
func balanceJSON(r *services.VerifyResult) any {
	if r.Balance.IsInt64() {
		return r.Balance.Int64()
	}
	return r.Balance.String()
}

// @Summary      Статус верификации пользователя
// @Description  Только чтение, без побочных эффектов
// @Tags         Verify
// @Produce      json
// @Param        discordId  path      string  true  "Discord ID"
// @Success      200        {object}  map[string]interface{}
// @Router       /api/status/{discordId} [get]
func (h *VerifyHandler) Status(c *gin.Context) {
	discordID := c.Param("discordId")

	rec, err := h.Verif.Status(c.Request.Context(), discordID)
	if err != nil {
		log.Printf("[api][status][err] user=%s: %v", discordID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if rec == nil || !rec.HasWallet() {
		c.JSON(http.StatusOK, gin.H{"verified": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verified":   true,
		"wallet":     rec.MaskedWallet(),
		"verifiedAt": rec.VerifiedAt,
	})
}
