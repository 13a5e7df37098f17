package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/storefront/internal/analytics/domain"
)

func (s *Server) GetSalesSummary(c *gin.Context) {
	req, err := summaryRequestFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.analyticsSvc.SalesSummary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTopProducts(c *gin.Context) {
	req, err := summaryRequestFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.analyticsSvc.TopProducts(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func summaryRequestFromQuery(c *gin.Context) (analyticsdomain.SummaryRequest, error) {
	since, err := parseOptionalTime(c.Query("since"), false)
	if err != nil {
		return analyticsdomain.SummaryRequest{}, newValidationError("since", "invalid_time", "invalid since")
	}
	until, err := parseOptionalTime(c.Query("until"), true)
	if err != nil {
		return analyticsdomain.SummaryRequest{}, newValidationError("until", "invalid_time", "invalid until")
	}
	return analyticsdomain.SummaryRequest{Since: since, Until: until}, nil
}
