// applications.go
//
// Multi-department "no dues" clearance workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of nodues.
// nodues is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// nodues is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with nodues.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/nodues/internal/certificates"
	"github.com/localnerve/nodues/internal/middleware"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/types"
	"github.com/localnerve/nodues/internal/utils"
	"github.com/localnerve/nodues/internal/workflow"
)

// ApplicationHandler handles clearance application routes
type ApplicationHandler struct {
	Engine *workflow.Engine
	// Certificates is optional; without it no download URL is offered.
	Certificates certificates.ObjectStore
	CertURLTTL   time.Duration
}

// CreateApplicationRequest is the body of POST /applications
type CreateApplicationRequest struct {
	RegistrationNo string                 `json:"registration_no" validate:"required,max=64"`
	EntryKind      string                 `json:"entry_kind" validate:"omitempty,oneof=standard manual"`
	Departments    types.FlexList[string] `json:"departments" validate:"omitempty,max=64,dive,required,max=64" swaggertype:"array,string"`
	Profile        map[string]interface{} `json:"profile"`
}

// DecisionRequest is a department decision
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Remarks  string `json:"remarks" validate:"max=2048"`
	Reason   string `json:"reason" validate:"required_if=Decision rejected,max=2048"`
}

// ReapplyRequest responds to one rejection, or to all of them with department "ALL"
type ReapplyRequest struct {
	Department string `json:"department" validate:"required,max=64"`
	Message    string `json:"message" validate:"required,max=2048"`
}

// ManualReviewRequest is an admin verdict on a manual entry
type ManualReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason   string `json:"reason" validate:"required_if=Decision rejected,max=2048"`
}

// CertificateResponse describes an application's certificate
type CertificateResponse struct {
	ApplicationID    string                  `json:"application_id"`
	CertificateState models.CertificateState `json:"certificate_state"`
	Reference        *string                 `json:"reference,omitempty"`
	URL              string                  `json:"url,omitempty"`
	ExpiresAt        *time.Time              `json:"expires_at,omitempty"`
}

// CreateApplication handles POST /api/v1/applications
// @Summary Submit a clearance application
// @Description Creates the application and one pending approval per department
// @Tags Applications
// @Accept json
// @Produce json
// @Param body body CreateApplicationRequest true "Application"
// @Success 201 {object} workflow.ApplicationState
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /applications [post]
func (h *ApplicationHandler) CreateApplication(c *fiber.Ctx) error {
	var req CreateApplicationRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "createApplication")
	}

	state, err := h.Engine.CreateApplication(c.UserContext(), workflow.CreateInput{
		RegistrationNo: req.RegistrationNo,
		EntryKind:      models.EntryKind(req.EntryKind),
		Departments:    req.Departments.Slice(),
		Profile:        req.Profile,
		Actor:          middleware.ActorFrom(c),
	})
	if err != nil {
		return fail(c, err, "createApplication")
	}
	return utils.SuccessResponse(c, state, fiber.StatusCreated)
}

// GetApplication handles GET /api/v1/applications/:id
// @Summary Get application state
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} workflow.ApplicationState
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /applications/{id} [get]
func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	state, err := h.Engine.GetApplicationState(c.UserContext(), param(c, "id"))
	if err != nil {
		return fail(c, err, "getApplication")
	}
	return utils.SuccessResponse(c, state, fiber.StatusOK)
}

// GetByRegistration handles GET /api/v1/applications/by-registration/:regno
// @Summary Get application state by registration number
// @Tags Applications
// @Produce json
// @Param regno path string true "Registration number"
// @Success 200 {object} workflow.ApplicationState
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /applications/by-registration/{regno} [get]
func (h *ApplicationHandler) GetByRegistration(c *fiber.Ctx) error {
	state, err := h.Engine.GetByRegistration(c.UserContext(), param(c, "regno"))
	if err != nil {
		return fail(c, err, "getByRegistration")
	}
	return utils.SuccessResponse(c, state, fiber.StatusOK)
}

// Decide handles POST /api/v1/applications/:id/departments/:department/decision
// @Summary Record a department decision
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param department path string true "Department"
// @Param body body DecisionRequest true "Decision"
// @Success 200 {object} workflow.ApplicationState
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/departments/{department}/decision [post]
func (h *ApplicationHandler) Decide(c *fiber.Ctx) error {
	var req DecisionRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "decide")
	}

	state, err := h.Engine.Decide(c.UserContext(), workflow.DecisionInput{
		ApplicationID: param(c, "id"),
		Department:    param(c, "department"),
		Decision:      models.ApprovalStatus(req.Decision),
		Actor:         middleware.ActorFrom(c),
		Remarks:       req.Remarks,
		Reason:        req.Reason,
	})
	if err != nil {
		return fail(c, err, "decide")
	}
	return utils.SuccessResponse(c, state, fiber.StatusOK)
}

// Reapply handles POST /api/v1/applications/:id/reapply
// @Summary Respond to rejections
// @Description Resets one rejected department, or every rejected department with "ALL"
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param body body ReapplyRequest true "Reapplication"
// @Success 200 {object} workflow.ApplicationState
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/reapply [post]
func (h *ApplicationHandler) Reapply(c *fiber.Ctx) error {
	var req ReapplyRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "reapply")
	}

	state, err := h.Engine.Reapply(c.UserContext(), workflow.ReapplyInput{
		ApplicationID: param(c, "id"),
		Department:    req.Department,
		Message:       req.Message,
		Actor:         middleware.ActorFrom(c),
	})
	if err != nil {
		return fail(c, err, "reapply")
	}
	return utils.SuccessResponse(c, state, fiber.StatusOK)
}

// ReviewManual handles POST /api/v1/applications/:id/manual-review
// @Summary Review a manual entry
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param body body ManualReviewRequest true "Verdict"
// @Success 200 {object} workflow.ApplicationState
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/manual-review [post]
func (h *ApplicationHandler) ReviewManual(c *fiber.Ctx) error {
	var req ManualReviewRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "reviewManual")
	}

	state, err := h.Engine.ReviewManual(c.UserContext(), workflow.ManualReviewInput{
		ApplicationID: param(c, "id"),
		Decision:      models.ManualStatus(req.Decision),
		Reason:        req.Reason,
		Actor:         middleware.ActorFrom(c),
	})
	if err != nil {
		return fail(c, err, "reviewManual")
	}
	return utils.SuccessResponse(c, state, fiber.StatusOK)
}

// RetryCertificate handles POST /api/v1/applications/:id/certificate/retry
// @Summary Retry certificate generation
// @Tags Certificates
// @Produce json
// @Param id path string true "Application ID"
// @Success 202 {object} workflow.ApplicationState
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/certificate/retry [post]
func (h *ApplicationHandler) RetryCertificate(c *fiber.Ctx) error {
	state, err := h.Engine.RetryCertificate(c.UserContext(), param(c, "id"), middleware.ActorFrom(c))
	if err != nil {
		return fail(c, err, "retryCertificate")
	}
	return utils.SuccessResponse(c, state, fiber.StatusAccepted)
}

// GetCertificate handles GET /api/v1/applications/:id/certificate
// @Summary Get certificate state and download URL
// @Tags Certificates
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} CertificateResponse
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/certificate [get]
func (h *ApplicationHandler) GetCertificate(c *fiber.Ctx) error {
	state, err := h.Engine.GetApplicationState(c.UserContext(), param(c, "id"))
	if err != nil {
		return fail(c, err, "getCertificate")
	}

	res := CertificateResponse{
		ApplicationID:    state.ID,
		CertificateState: state.CertificateState,
		Reference:        state.CertificateRef,
	}
	if state.CertificateState == models.CertificateGenerated && state.CertificateRef != nil && h.Certificates != nil {
		url, err := h.Certificates.PresignedURL(c.UserContext(), *state.CertificateRef, h.CertURLTTL)
		if err != nil {
			return fail(c, err, "getCertificate")
		}
		expires := time.Now().UTC().Add(h.CertURLTTL)
		res.URL = url
		res.ExpiresAt = &expires
	}
	return utils.SuccessResponse(c, res, fiber.StatusOK)
}

// GetApplicationAudit handles GET /api/v1/applications/:id/audit
// @Summary Audit history of an application, newest first
// @Tags Audit
// @Produce json
// @Param id path string true "Application ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} workflow.AuditPage
// @Router /applications/{id}/audit [get]
func (h *ApplicationHandler) GetApplicationAudit(c *fiber.Ctx) error {
	page, err := h.Engine.ListAudit(c.UserContext(), workflow.AuditQuery{
		ApplicationID: param(c, "id"),
		Page:          parsePage(c),
	})
	if err != nil {
		return fail(c, err, "getApplicationAudit")
	}
	return utils.SuccessResponse(c, page, fiber.StatusOK)
}
