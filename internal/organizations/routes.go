package organizations

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the organization and membership routes on an authenticated group.
// Routes that act on one organization sit behind the Access middleware that sets ContextOrganizationID.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, access *Access) {
	g.POST("/organizations", h.CreateOrganization)
	g.GET("/organizations", h.ListMyOrganizations)
	g.GET("/organizations/slug/:slug", h.GetOrganizationBySlug)
	g.GET("/organizations/:id", h.GetOrganization)
	g.PATCH("/organizations/:id", access.RequireOrganizer("id"), h.UpdateOrganization)
	g.DELETE("/organizations/:id", h.DeleteOrganization)
	g.GET("/organizations/:id/members", access.RequireMember("id"), h.ListMembers)
	g.POST("/organizations/:id/members", access.RequireOrganizer("id"), h.AddMember)
	g.PATCH("/organizations/:id/members/:userId", access.RequireOrganizer("id"), h.UpdateMemberRole)
	g.DELETE("/organizations/:id/members/:userId", access.RequireMember("id"), h.RemoveMember)
}
