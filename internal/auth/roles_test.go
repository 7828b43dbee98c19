package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mahara-dz/mahara-api/internal/auth"
	"github.com/mahara-dz/mahara-api/internal/domain"
	apperrors "github.com/mahara-dz/mahara-api/pkg/util/errorutil"
)

func TestRequire(t *testing.T) {
	customer := &domain.AuthenticatedUser{ID: 1, Role: domain.RoleCustomer}
	provider := &domain.AuthenticatedUser{ID: 2, Role: domain.RoleProvider}
	admin := &domain.AuthenticatedUser{ID: 3, Role: domain.RoleAdmin}

	tests := []struct {
		name    string
		user    *domain.AuthenticatedUser
		allowed []domain.Role
		wantErr error
	}{
		{name: "anonymous admin route", user: nil, allowed: []domain.Role{domain.RoleAdmin}, wantErr: auth.ErrUnauthenticated},
		{name: "anonymous any role", user: nil, wantErr: auth.ErrUnauthenticated},
		{name: "customer on admin route", user: customer, allowed: []domain.Role{domain.RoleAdmin}, wantErr: auth.ErrForbidden},
		{name: "provider on admin route", user: provider, allowed: []domain.Role{domain.RoleAdmin}, wantErr: auth.ErrForbidden},
		{name: "admin on admin route", user: admin, allowed: []domain.Role{domain.RoleAdmin}},
		{name: "provider on provider route", user: provider, allowed: []domain.Role{domain.RoleProvider}},
		{name: "admin on provider route", user: admin, allowed: []domain.Role{domain.RoleProvider}, wantErr: auth.ErrForbidden},
		{name: "customer any role", user: customer},
		{name: "provider in role set", user: provider, allowed: []domain.Role{domain.RoleCustomer, domain.RoleProvider}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Require(tt.user, tt.allowed...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Require() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.user {
				t.Errorf("Require() = %p, want the same user %p", got, tt.user)
			}
			if tt.wantErr != nil && got != nil {
				t.Errorf("Require() = %+v, want nil on error", got)
			}
		})
	}
}

func newGateApp(t *testing.T) (*fiber.App, *auth.TokenManager) {
	t.Helper()

	tm, _ := newTestManager(t)
	authenticator := auth.NewAuthenticator(tm, newStubUsers(), nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"success": false, "message": de.Message})
		},
	})
	app.Use(auth.NewAuthMiddleware(authenticator).Handle)
	ok := func(c *fiber.Ctx) error {
		p, _ := auth.PrincipalFromContext(c)
		return c.JSON(fiber.Map{"id": p.ID})
	}
	app.Get("/public", func(c *fiber.Ctx) error {
		_, authenticated := auth.PrincipalFromContext(c)
		return c.JSON(fiber.Map{"authenticated": authenticated})
	})
	app.Get("/me", auth.RequireAuthenticated(), ok)
	app.Get("/admin", auth.RequireAdmin(), ok)
	app.Get("/provider", auth.RequireProvider(), ok)
	app.Get("/admin-or-customer", auth.RequireRole(domain.RoleAdmin, domain.RoleCustomer), ok)
	return app, tm
}

func TestGates(t *testing.T) {
	app, tm := newGateApp(t)

	bearer := func(id int64, role domain.Role) string {
		token, _, err := tm.Issue(id, "x@example.dz", role, time.Hour)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		return "Bearer " + token
	}
	customer := bearer(1, domain.RoleCustomer)
	admin := bearer(3, domain.RoleAdmin)

	tests := []struct {
		name        string
		path        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{name: "public anonymous", path: "/public", wantStatus: http.StatusOK},
		{name: "public with invalid token", path: "/public", header: "Bearer junk", wantStatus: http.StatusOK},
		{name: "me anonymous", path: "/me", wantStatus: http.StatusUnauthorized, wantMessage: "Authentication required"},
		{name: "me customer", path: "/me", header: customer, wantStatus: http.StatusOK},
		{name: "admin anonymous", path: "/admin", wantStatus: http.StatusUnauthorized, wantMessage: "Authentication required"},
		{name: "admin as customer", path: "/admin", header: customer, wantStatus: http.StatusForbidden, wantMessage: "Admin access required"},
		{name: "admin as admin", path: "/admin", header: admin, wantStatus: http.StatusOK},
		{name: "provider as admin", path: "/provider", header: admin, wantStatus: http.StatusForbidden, wantMessage: "Provider access required"},
		{name: "role set as customer", path: "/admin-or-customer", header: customer, wantStatus: http.StatusOK},
		{name: "deactivated provider", path: "/provider", header: bearer(2, domain.RoleProvider), wantStatus: http.StatusUnauthorized, wantMessage: "Authentication required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantMessage == "" {
				return
			}
			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Success || body.Message != tt.wantMessage {
				t.Errorf("body = %+v, want message %q", body, tt.wantMessage)
			}
		})
	}
}

func TestAuthMiddleware_StorageErrorIs500(t *testing.T) {
	tm, _ := newTestManager(t)
	users := newStubUsers()
	users.err = errStorage

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Use(auth.NewAuthMiddleware(auth.NewAuthenticator(tm, users, nil)).Handle)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	token, _, err := tm.Issue(1, "customer@example.dz", domain.RoleCustomer, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
