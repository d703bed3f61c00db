// data.go
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

package helpers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/localnerve/nodues/internal/middleware"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/workflow"
)

var (
	Student   = workflow.Actor{ID: "student-1", Role: workflow.RoleStudent}
	Registrar = workflow.Actor{ID: "registrar", Role: workflow.RoleAdmin}
	Staff     = workflow.Actor{ID: "staff", Role: workflow.RoleDepartment}
)

// CreateTestApplications submits n standard applications with registration
// numbers prefix-1..prefix-n.
func CreateTestApplications(t *testing.T, engine *workflow.Engine, prefix string, n int, departments ...string) []*workflow.ApplicationState {
	t.Helper()
	out := make([]*workflow.ApplicationState, 0, n)
	for i := 1; i <= n; i++ {
		state, err := engine.CreateApplication(context.Background(), workflow.CreateInput{
			RegistrationNo: fmt.Sprintf("%s-%d", prefix, i),
			Departments:    departments,
			Actor:          Student,
		})
		if err != nil {
			t.Fatalf("Failed to create application %s-%d: %v", prefix, i, err)
		}
		out = append(out, state)
	}
	return out
}

// ApproveAll approves every pending department of one application.
func ApproveAll(t *testing.T, engine *workflow.Engine, state *workflow.ApplicationState) *workflow.ApplicationState {
	t.Helper()
	for _, a := range state.Approvals {
		if a.Status != models.ApprovalPending {
			continue
		}
		next, err := engine.Decide(context.Background(), workflow.DecisionInput{
			ApplicationID: state.ID,
			Department:    a.Department,
			Decision:      models.ApprovalApproved,
			Actor:         Staff,
		})
		if err != nil {
			t.Fatalf("Failed to approve %s for %s: %v", a.Department, state.RegistrationNo, err)
		}
		state = next
	}
	return state
}

// SetIdentity adds header mode identity headers to a request.
func SetIdentity(req *http.Request, id string, roles ...string) {
	if id == "" {
		return
	}
	req.Header.Set(middleware.HeaderActorID, id)
	req.Header.Set(middleware.HeaderActorRole, strings.Join(roles, ","))
}
