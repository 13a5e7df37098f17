package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = s.userID(c)
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)

	resp, err := s.orderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMyOrders(c *gin.Context) {
	status := orderdomain.Status(strings.ToLower(strings.TrimSpace(c.Query("status"))))

	resp, err := s.orderSvc.ListByUser(c.Request.Context(), s.userID(c), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMyOrder(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.orderSvc.GetForUser(c.Request.Context(), token, s.userID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelMyOrder(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if _, err := s.orderSvc.GetForUser(c.Request.Context(), token, s.userID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.orderSvc.Cancel(c.Request.Context(), token, "cancelled by buyer")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		UserID string `form:"user_id"`
		Status string `form:"status"`
		Since  string `form:"since"`
		Until  string `form:"until"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	since, err := parseOptionalTime(query.Since, false)
	if err != nil {
		AbortWithError(c, newValidationError("since", "invalid_time", "invalid since"))
		return
	}
	until, err := parseOptionalTime(query.Until, true)
	if err != nil {
		AbortWithError(c, newValidationError("until", "invalid_time", "invalid until"))
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		UserID:    strings.TrimSpace(query.UserID),
		Status:    strings.ToLower(strings.TrimSpace(query.Status)),
		Since:     since,
		Until:     until,
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.orderSvc.Get(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "cancelled by admin"
	}

	token := strings.TrimSpace(c.Param("token"))
	resp, err := s.orderSvc.Cancel(c.Request.Context(), token, reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CompleteOrder(c *gin.Context) {
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
	resp, err := s.orderSvc.Complete(c.Request.Context(), token, req.DeliveryInfo)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
