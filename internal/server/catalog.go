package server

import "github.com/gin-gonic/gin"

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.catalog.ListPlans(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, plans)
}

func (s *Server) ListServices(c *gin.Context) {
	services, err := s.catalog.ListServices(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, services)
}
