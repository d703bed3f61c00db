// departments.go
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
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/nodues/internal/middleware"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/types"
	"github.com/localnerve/nodues/internal/utils"
	"github.com/localnerve/nodues/internal/workflow"
)

// DepartmentHandler handles department scoped routes
type DepartmentHandler struct {
	Engine   *workflow.Engine
	Registry *registry.Registry
}

// BulkDecisionRequest applies one decision to many applications
type BulkDecisionRequest struct {
	ApplicationIDs types.FlexList[string] `json:"application_ids" validate:"required,min=1,max=500,dive,required" swaggertype:"array,string"`
	Decision       string                 `json:"decision" validate:"required,oneof=approved rejected"`
	Remarks        string                 `json:"remarks" validate:"max=2048"`
	Reason         string                 `json:"reason" validate:"required_if=Decision rejected,max=2048"`
}

// BulkDecisionResponse reports every item of a bulk decision
type BulkDecisionResponse struct {
	Department string                `json:"department"`
	Succeeded  int                   `json:"succeeded"`
	Failed     int                   `json:"failed"`
	Results    []workflow.BulkResult `json:"results"`
}

// DepartmentView is a registry entry
type DepartmentView struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Order       int    `json:"order"`
	Active      bool   `json:"active"`
}

// ListDepartments handles GET /api/v1/departments
// @Summary List clearance departments
// @Tags Departments
// @Produce json
// @Success 200 {array} DepartmentView
// @Router /departments [get]
func (h *DepartmentHandler) ListDepartments(c *fiber.Ctx) error {
	all := h.Registry.All()
	out := make([]DepartmentView, len(all))
	for i, d := range all {
		out[i] = DepartmentView{Name: d.Name, DisplayName: d.DisplayName, Order: d.Order, Active: d.IsActive()}
	}
	return utils.SuccessResponse(c, out, fiber.StatusOK)
}

// BulkDecide handles POST /api/v1/departments/:department/decisions/bulk
// @Summary Apply one decision to many applications
// @Description Each item succeeds or fails on its own; a mixed outcome is normal
// @Tags Approvals
// @Accept json
// @Produce json
// @Param department path string true "Department"
// @Param body body BulkDecisionRequest true "Bulk decision"
// @Success 200 {object} BulkDecisionResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /departments/{department}/decisions/bulk [post]
func (h *DepartmentHandler) BulkDecide(c *fiber.Ctx) error {
	var req BulkDecisionRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "bulkDecide")
	}

	department := registry.NormalizeName(param(c, "department"))
	results, err := h.Engine.BulkDecide(c.UserContext(), workflow.BulkDecisionInput{
		ApplicationIDs: req.ApplicationIDs.Slice(),
		Department:     department,
		Decision:       models.ApprovalStatus(req.Decision),
		Actor:          middleware.ActorFrom(c),
		Remarks:        req.Remarks,
		Reason:         req.Reason,
	})
	if err != nil {
		return fail(c, err, "bulkDecide")
	}

	res := BulkDecisionResponse{Department: department, Results: results}
	for _, r := range results {
		if r.OK {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	return utils.SuccessResponse(c, res, fiber.StatusOK)
}

// ListApprovals handles GET /api/v1/departments/:department/approvals
// @Summary Department work queue
// @Tags Approvals
// @Produce json
// @Param department path string true "Department"
// @Param status query string false "pending, approved or rejected"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} workflow.QueuePage
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /departments/{department}/approvals [get]
func (h *DepartmentHandler) ListApprovals(c *fiber.Ctx) error {
	page, err := h.Engine.ListApprovals(c.UserContext(), workflow.ApprovalQuery{
		Department: param(c, "department"),
		Status:     models.ApprovalStatus(query(c, "status")),
		Page:       parsePage(c),
	})
	if err != nil {
		return fail(c, err, "listApprovals")
	}
	return utils.SuccessResponse(c, page, fiber.StatusOK)
}

// GetDepartmentAudit handles GET /api/v1/departments/:department/audit
// @Summary Audit history of a department, newest first
// @Tags Audit
// @Produce json
// @Param department path string true "Department"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} workflow.AuditPage
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /departments/{department}/audit [get]
func (h *DepartmentHandler) GetDepartmentAudit(c *fiber.Ctx) error {
	page, err := h.Engine.ListAudit(c.UserContext(), workflow.AuditQuery{
		Department: param(c, "department"),
		Page:       parsePage(c),
	})
	if err != nil {
		return fail(c, err, "getDepartmentAudit")
	}
	return utils.SuccessResponse(c, page, fiber.StatusOK)
}
