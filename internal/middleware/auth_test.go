package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(rules ...Roles) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).SendString(err.Error())
		},
	})
	app.Get("/departments/:department", Require(HeaderResolver{}, rules...), func(c *fiber.Ctx) error {
		a := ActorFrom(c)
		return c.JSON(fiber.Map{"id": a.ID, "role": a.Role, "matched": MatchedRole(c)})
	})
	return app
}

func TestRequireHeaderRoles(t *testing.T) {
	app := testApp(Admin, DepartmentParam)

	cases := []struct {
		name    string
		id      string
		roles   string
		path    string
		status  int
		role    string
		matched string
	}{
		{"admin", "registrar", "admin", "/departments/library", 200, workflow.RoleAdmin, "admin"},
		{"own department", "librarian", "department:library", "/departments/LIBRARY", 200, workflow.RoleDepartment, "department:library"},
		{"other department", "cashier", "department:accounts", "/departments/library", 403, "", ""},
		{"student", "s1", "student", "/departments/library", 403, "", ""},
		{"no identity", "", "admin", "/departments/library", 403, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.id != "" {
				req.Header.Set(HeaderActorID, tc.id)
			}
			req.Header.Set(HeaderActorRole, tc.roles)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.status != 200 {
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.id, body["id"])
			assert.Equal(t, tc.role, body["role"])
			assert.Equal(t, tc.matched, body["matched"])
		})
	}
}

func TestActorFor(t *testing.T) {
	assert.Equal(t, workflow.Actor{ID: "x", Role: workflow.RoleDepartment}, ActorFor("x", "department:hostel"))
	assert.Equal(t, workflow.Actor{ID: "x", Role: workflow.RoleAdmin}, ActorFor("x", "admin"))
	assert.Equal(t, "department:library", DepartmentRole(" Library "))
}
