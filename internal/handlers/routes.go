// routes.go
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
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/middleware"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Dependencies are the collaborators behind the HTTP API.
type Dependencies struct {
	Config       *config.Config
	DB           *gorm.DB
	Engine       *workflow.Engine
	Registry     *registry.Registry
	Hub          *notify.Hub
	Certificates certificates.ObjectStore
	CertURLTTL   time.Duration
	Resolver     middleware.Resolver
	Log          zerolog.Logger
}

// Register mounts the v1 API on router.
func Register(router fiber.Router, d Dependencies) {
	apps := &ApplicationHandler{Engine: d.Engine, Certificates: d.Certificates, CertURLTTL: d.CertURLTTL}
	depts := &DepartmentHandler{Engine: d.Engine, Registry: d.Registry}
	health := &HealthHandler{Config: d.Config, DB: d.DB, Log: d.Log}

	auth := func(rules ...middleware.Roles) fiber.Handler {
		return middleware.Require(d.Resolver, rules...)
	}
	anyone := auth(middleware.Admin, middleware.Student, middleware.AnyDepartment(d.Registry))
	staff := auth(middleware.Admin, middleware.DepartmentParam)

	router.Get("/health", health.Health)
	router.Get("/departments", depts.ListDepartments)

	// Applications
	router.Post("/applications", auth(middleware.Student, middleware.Admin), apps.CreateApplication)
	router.Get("/applications/by-registration/:regno", anyone, apps.GetByRegistration)
	router.Get("/applications/:id", anyone, apps.GetApplication)
	router.Post("/applications/:id/departments/:department/decision", staff, apps.Decide)
	router.Post("/applications/:id/reapply", auth(middleware.Student, middleware.Admin), apps.Reapply)
	router.Post("/applications/:id/manual-review", auth(middleware.Admin), apps.ReviewManual)
	router.Post("/applications/:id/certificate/retry", auth(middleware.Admin), apps.RetryCertificate)
	router.Get("/applications/:id/certificate", anyone, apps.GetCertificate)
	router.Get("/applications/:id/audit", anyone, apps.GetApplicationAudit)

	// Departments
	router.Post("/departments/:department/decisions/bulk", staff, depts.BulkDecide)
	router.Get("/departments/:department/approvals", staff, depts.ListApprovals)
	router.Get("/departments/:department/audit", staff, depts.GetDepartmentAudit)

	if d.Hub != nil {
		events := &EventsHandler{Hub: d.Hub}
		router.Get("/events", anyone, events.Stream)
	}
}
