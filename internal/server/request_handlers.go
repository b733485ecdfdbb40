package server

import (
	"lectern/internal/models"
	"lectern/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// SubmitAccessRequest is the body of POST /api/requests.
type SubmitAccessRequest struct {
	CourseID uint   `json:"course_id" validate:"required"`
	Message  string `json:"message" validate:"max=2000"`
}

// SubmitRequest handles POST /api/requests
// @Summary Request access to a paid course
// @Description Creates a request, or reopens the caller's rejected or cancelled one
// @Tags requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SubmitAccessRequest true "Request"
// @Success 201 {object} models.Envelope{data=models.AccessRequest}
// @Failure 400 {object} models.Envelope
// @Failure 409 {object} models.Envelope
// @Router /requests [post]
func (s *Server) SubmitRequest(c *fiber.Ctx) error {
	var in SubmitAccessRequest
	if err := parseValidBody(c, &in); err != nil {
		return nil
	}
	req, err := s.requestService.Submit(c.UserContext(), currentUser(c).ID, in.CourseID, in.Message)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, req)
}

// ListMyRequests handles GET /api/requests/me
// @Summary The caller's access requests
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope{data=[]models.AccessRequest}
// @Router /requests/me [get]
func (s *Server) ListMyRequests(c *fiber.Ctx) error {
	reqs, err := s.requestService.ListMine(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, reqs)
}

// CancelRequest handles POST /api/requests/:id/cancel
// @Summary Withdraw a pending request
// @Tags requests
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.Envelope{data=models.AccessRequest}
// @Failure 404 {object} models.Envelope
// @Failure 409 {object} models.Envelope
// @Router /requests/{id}/cancel [post]
func (s *Server) CancelRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.requestService.Cancel(c.UserContext(), currentUser(c).ID, id)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, req)
}

// AdminListRequests handles GET /api/admin/requests
// @Summary List access requests
// @Tags admin
// @Security BearerAuth
// @Param status query string false "new, approved, rejected or cancelled"
// @Param course_id query int false "Course filter"
// @Success 200 {object} models.Envelope
// @Router /admin/requests [get]
func (s *Server) AdminListRequests(c *fiber.Ctx) error {
	courseID, err := parseQueryID(c, "course_id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	filter := repository.RequestFilter{
		Status:   models.AccessRequestStatus(c.Query("status")),
		CourseID: courseID,
	}
	reqs, total, err := s.requestService.List(c.UserContext(), filter, page)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, newList(reqs, total, page))
}

// AdminApproveRequest handles POST /api/admin/requests/:id/approve
// @Summary Approve a request and grant access
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.Envelope{data=models.AccessRequest}
// @Failure 409 {object} models.Envelope
// @Router /admin/requests/{id}/approve [post]
func (s *Server) AdminApproveRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.requestService.Approve(c.UserContext(), viewer(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, req)
}

// AdminRejectRequest handles POST /api/admin/requests/:id/reject
// @Summary Reject a request
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.Envelope{data=models.AccessRequest}
// @Failure 409 {object} models.Envelope
// @Router /admin/requests/{id}/reject [post]
func (s *Server) AdminRejectRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.requestService.Reject(c.UserContext(), viewer(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, req)
}

// GrantRequest is the body of POST /api/admin/grants.
type GrantRequest struct {
	UserID   uint `json:"user_id" validate:"required"`
	CourseID uint `json:"course_id" validate:"required"`
}

// AdminListGrants handles GET /api/admin/grants
// @Summary List grants
// @Tags admin
// @Security BearerAuth
// @Param course_id query int false "Course filter"
// @Success 200 {object} models.Envelope
// @Router /admin/grants [get]
func (s *Server) AdminListGrants(c *fiber.Ctx) error {
	courseID, err := parseQueryID(c, "course_id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	grants, total, err := s.grantService.List(c.UserContext(), courseID, page)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, newList(grants, total, page))
}

// AdminCreateGrant handles POST /api/admin/grants
// @Summary Grant a user access to a course
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param request body GrantRequest true "Grant"
// @Success 201 {object} models.Envelope{data=models.CourseAccess}
// @Router /admin/grants [post]
func (s *Server) AdminCreateGrant(c *fiber.Ctx) error {
	var in GrantRequest
	if err := parseValidBody(c, &in); err != nil {
		return nil
	}
	grant, err := s.grantService.Grant(c.UserContext(), viewer(c), in.UserID, in.CourseID)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, grant)
}

// AdminRevokeGrant handles DELETE /api/admin/grants/:id
// @Summary Revoke a grant
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Grant ID"
// @Success 200 {object} models.Envelope
// @Router /admin/grants/{id} [delete]
func (s *Server) AdminRevokeGrant(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.grantService.Revoke(c.UserContext(), viewer(c), id); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.Map{"message": "Grant revoked"})
}
