package server

import "github.com/gin-gonic/gin"

// ListClientInstallments returns the client's installments with overdue
// status derived for the request's day.
func (s *Server) ListClientInstallments(c *gin.Context) {
	clientID, err := pathID(c, "client_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.installmentSvc.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}
