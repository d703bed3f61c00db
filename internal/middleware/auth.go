package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/services"
	"github.com/localnerve/nodues/internal/types"
	"github.com/localnerve/nodues/internal/workflow"
)

const (
	// SessionCookie carries the authorizer session.
	SessionCookie = "cookie_session"
	// HeaderActorID and HeaderActorRole carry a gateway asserted identity.
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"

	localsActor = "actor"
	localsRole  = "role"

	departmentRolePrefix = "department:"
)

// Roles yields the role names that may pass a route for this request.
type Roles func(c *fiber.Ctx) []string

// Admin allows the admin role.
func Admin(*fiber.Ctx) []string { return []string{workflow.RoleAdmin} }

// Student allows the student role.
func Student(*fiber.Ctx) []string { return []string{workflow.RoleStudent} }

// DepartmentParam allows staff of the department named in the route.
func DepartmentParam(c *fiber.Ctx) []string {
	return []string{DepartmentRole(c.Params("department"))}
}

// AnyDepartment allows staff of any registered department.
func AnyDepartment(reg *registry.Registry) Roles {
	return func(*fiber.Ctx) []string {
		all := reg.All()
		out := make([]string, len(all))
		for i, d := range all {
			out[i] = DepartmentRole(d.Name)
		}
		return out
	}
}

// DepartmentRole is the role name held by a department's staff.
func DepartmentRole(department string) string {
	return departmentRolePrefix + registry.NormalizeName(department)
}

// Resolver establishes who is calling, as one of the candidate roles.
type Resolver interface {
	Resolve(c *fiber.Ctx, candidates []string) (id, role string, err error)
}

var errNoCredentials = errors.New("no credentials")

// SessionResolver validates the authorizer session cookie.
type SessionResolver struct {
	Config *config.Config
}

func (r SessionResolver) Resolve(c *fiber.Ctx, candidates []string) (string, string, error) {
	session := c.Cookies(SessionCookie)
	if session == "" {
		return "", "", fmt.Errorf("authorizer cookie %q not found: %w", SessionCookie, errNoCredentials)
	}
	if !services.IsAuthorizerInitialized() {
		if err := services.InitAuthorizer(r.Config, c.Protocol(), c.Hostname()); err != nil {
			return "", "", err
		}
	}

	var lastErr error
	for _, role := range candidates {
		id, err := services.ValidateSession(session, role)
		if err == nil {
			return id, role, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = services.ErrSessionInvalid
	}
	return "", "", lastErr
}

// HeaderResolver trusts identity headers set by a gateway in front of the service.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(c *fiber.Ctx, candidates []string) (string, string, error) {
	id := fiberutils.CopyString(strings.TrimSpace(c.Get(HeaderActorID)))
	if id == "" {
		return "", "", fmt.Errorf("header %s not found: %w", HeaderActorID, errNoCredentials)
	}
	held := make(map[string]struct{})
	for _, r := range strings.Split(c.Get(HeaderActorRole), ",") {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			held[r] = struct{}{}
		}
	}
	for _, role := range candidates {
		if _, ok := held[role]; ok {
			return id, role, nil
		}
	}
	return "", "", fmt.Errorf("actor %s holds none of %s", id, strings.Join(candidates, ", "))
}

// NewResolver picks the resolver for the configured AUTH_MODE.
func NewResolver(cfg *config.Config) Resolver {
	if cfg.AuthMode == "header" {
		return HeaderResolver{}
	}
	return SessionResolver{Config: cfg}
}

// Require validates that the caller holds one of the roles yielded by rules
// and stores the resulting actor for the handlers.
func Require(resolver Resolver, rules ...Roles) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var candidates []string
		for _, rule := range rules {
			candidates = append(candidates, rule(c)...)
		}

		id, role, err := resolver.Resolve(c, candidates)
		if err != nil {
			return types.Forbidden(err)
		}

		c.Locals(localsActor, ActorFor(id, role))
		c.Locals(localsRole, role)
		return c.Next()
	}
}

// ActorFor maps a matched role onto the engine's actor.
func ActorFor(id, role string) workflow.Actor {
	if strings.HasPrefix(role, departmentRolePrefix) {
		return workflow.Actor{ID: id, Role: workflow.RoleDepartment}
	}
	return workflow.Actor{ID: id, Role: role}
}

// ActorFrom returns the actor stored by Require.
func ActorFrom(c *fiber.Ctx) workflow.Actor {
	if a, ok := c.Locals(localsActor).(workflow.Actor); ok {
		return a
	}
	return workflow.Actor{}
}

// MatchedRole returns the role the caller was admitted with.
func MatchedRole(c *fiber.Ctx) string {
	r, _ := c.Locals(localsRole).(string)
	return r
}
