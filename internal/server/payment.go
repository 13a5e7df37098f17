package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
)

func (s *Server) StartPayment(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.paymentSvc.Start(c.Request.Context(), paymentdomain.StartRequest{
		Token:  token,
		UserID: s.userID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) HandlePaymentReturn(c *gin.Context) {
	var req struct {
		ExternalID string `json:"external_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		AbortWithError(c, newValidationError("external_id", "invalid_external_id", "invalid external id"))
		return
	}

	token := strings.TrimSpace(c.Param("token"))
	if _, err := s.orderSvc.GetForUser(c.Request.Context(), token, s.userID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.HandleReturn(c.Request.Context(), token, externalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyCryptoPayment(c *gin.Context) {
	var req struct {
		TxHash string `json:"tx_hash"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.paymentSvc.VerifyCrypto(c.Request.Context(), paymentdomain.VerifyCryptoRequest{
		Token:  token,
		UserID: s.userID(c),
		TxHash: strings.TrimSpace(req.TxHash),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitPaymentProof(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.paymentSvc.SubmitProof(c.Request.Context(), paymentdomain.SubmitProofRequest{
		Token:  token,
		UserID: s.userID(c),
		Note:   strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConfirmManualPayment(c *gin.Context) {
	var req struct {
		DeliveryInfo *string `json:"delivery_info"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.paymentSvc.ConfirmManual(c.Request.Context(), paymentdomain.ConfirmManualRequest{
		Token:        token,
		AdminID:      s.userID(c),
		DeliveryInfo: req.DeliveryInfo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOrderPayments(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.paymentSvc.ListByOrder(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
