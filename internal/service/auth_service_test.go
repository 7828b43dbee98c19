package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mahara-dz/mahara-api/internal/auth"
	"github.com/mahara-dz/mahara-api/internal/config"
	"github.com/mahara-dz/mahara-api/internal/domain"
	"github.com/mahara-dz/mahara-api/internal/events"
	"github.com/mahara-dz/mahara-api/internal/service"
)

var errRepo = errors.New("repository error")

// mockUserRepository implements repository.UserRepository in memory.
type mockUserRepository struct {
	m      sync.Mutex
	users  map[int64]*domain.User
	nextID int64
	err    error
	// touchErr only fails TouchLogin
	touchErr error
}

func newMockUserRepo() *mockUserRepository {
	return &mockUserRepository{users: make(map[int64]*domain.User)}
}

func (r *mockUserRepository) Create(_ context.Context, user *domain.User) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *mockUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *mockUserRepository) update(id int64, fn func(*domain.User) bool) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[id]
	if !ok || !fn(u) {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *mockUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *mockUserRepository) FindActiveByID(_ context.Context, id int64) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id && u.IsActive })
}

func (r *mockUserRepository) FindActiveByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email && u.IsActive })
}

func (r *mockUserRepository) FindByResetToken(_ context.Context, token string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ResetToken != nil && *u.ResetToken == token && u.IsActive })
}

func (r *mockUserRepository) TouchLogin(_ context.Context, id int64) error {
	if r.touchErr != nil {
		return r.touchErr
	}
	return r.update(id, func(u *domain.User) bool { u.UpdatedAt = time.Now(); return true })
}

func (r *mockUserRepository) MarkVerified(_ context.Context, token string) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, u := range r.users {
		if u.VerificationToken != nil && *u.VerificationToken == token && !u.IsVerified {
			u.IsVerified = true
			u.VerificationToken = nil
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (r *mockUserRepository) SetResetToken(_ context.Context, id int64, token string, expiresAt time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		u.ResetToken = &token
		u.ResetTokenExpires = &expiresAt
		return true
	})
}

func (r *mockUserRepository) UpdatePassword(_ context.Context, id int64, hash string) error {
	return r.update(id, func(u *domain.User) bool {
		u.PasswordHash = hash
		u.ResetToken = nil
		u.ResetTokenExpires = nil
		return true
	})
}

func (r *mockUserRepository) SetActive(_ context.Context, id int64, active bool) error {
	return r.update(id, func(u *domain.User) bool { u.IsActive = active; return true })
}

func (r *mockUserRepository) Ping(context.Context) error { return r.err }

// recordingSender captures outbound mail.
type recordingSender struct {
	m    sync.Mutex
	sent []domain.Email
}

func (s *recordingSender) Send(_ context.Context, email domain.Email) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.sent = append(s.sent, email)
	return nil
}

func (s *recordingSender) last(t *testing.T) domain.Email {
	t.Helper()
	s.m.Lock()
	defer s.m.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("no email sent")
	}
	return s.sent[len(s.sent)-1]
}

type testEnv struct {
	svc    *service.AuthService
	repo   *mockUserRepository
	mail   *recordingSender
	clock  *time.Time
	events []events.EventType
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{repo: newMockUserRepo(), mail: &recordingSender{}, clock: &now}

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, env.mail, nil,
		config.NotificationConfig{EmailFrom: "noreply@mahara.dz"}, "http://mahara.local/").RegisterHandlers()
	for _, et := range []events.EventType{
		events.EventUserRegistered, events.EventUserLoggedIn, events.EventUserLoggedOut,
		events.EventPasswordResetRequested, events.EventPasswordReset, events.EventUserActivationChanged,
	} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			env.events = append(env.events, e.Type)
			return nil
		})
	}

	cfg := config.Config{
		App: config.AppConfig{DefaultLanguage: "ar"},
		Auth: config.AuthConfig{
			JWTSecret:               "service-test-secret",
			TokenTTLSeconds:         3600,
			PasswordResetTTLMinutes: 30,
			BcryptCost:              4,
		},
	}
	svc, err := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:   env.repo,
		Dispatcher: dispatcher,
		Now:        func() time.Time { return *env.clock },
	})
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	env.svc = svc
	return env
}

func (e *testEnv) register(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	user, err := e.svc.RegisterUser(context.Background(), service.RegisterInput{
		Email:     email,
		Password:  "Secret123",
		FirstName: "Amina",
		LastName:  "Benali",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	return user
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := service.NewAuthService(config.Config{}, service.AuthDependencies{UserRepo: newMockUserRepo()})
	if err == nil {
		t.Fatal("expected error without a signing secret")
	}
}

func TestAuthService_RegisterUser(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		role     domain.Role
		existing bool
		repoErr  error
		wantErr  error
		wantRole domain.Role
	}{
		{name: "customer by default", email: "new@example.dz", wantRole: domain.RoleCustomer},
		{name: "provider", email: "pro@example.dz", role: domain.RoleProvider, wantRole: domain.RoleProvider},
		{name: "admin rejected", email: "adm@example.dz", role: domain.RoleAdmin, wantErr: service.ErrRoleNotRegistrable},
		{name: "duplicate email", email: "dup@example.dz", existing: true, wantErr: domain.ErrUserAlreadyExists},
		{name: "repository error", email: "err@example.dz", repoErr: errRepo, wantErr: errRepo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestService(t)
			if tt.existing {
				env.register(t, tt.email, domain.RoleCustomer)
			}
			env.repo.err = tt.repoErr

			user, err := env.svc.RegisterUser(context.Background(), service.RegisterInput{
				Email:     "  " + tt.email + " ",
				Password:  "Secret123",
				FirstName: "Amina",
				LastName:  "Benali",
				Role:      tt.role,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RegisterUser() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if user.Email != tt.email || user.Role != tt.wantRole {
				t.Errorf("user = %+v", user)
			}
			if user.PasswordHash == "Secret123" || auth.ComparePassword(user.PasswordHash, "Secret123") != nil {
				t.Error("password not hashed with bcrypt")
			}
			if user.IsVerified || !user.IsActive || user.PreferredLanguage != "ar" {
				t.Errorf("flags verified=%v active=%v lang=%s", user.IsVerified, user.IsActive, user.PreferredLanguage)
			}
			if user.VerificationToken == nil || len(*user.VerificationToken) != 64 {
				t.Fatalf("VerificationToken = %v", user.VerificationToken)
			}

			mail := env.mail.last(t)
			if mail.To != tt.email || !strings.Contains(mail.Body, "http://mahara.local/verify?token="+*user.VerificationToken) {
				t.Errorf("verification email = %+v", mail)
			}
		})
	}
}

func TestAuthService_LoginUser(t *testing.T) {
	env := setupTestService(t)
	user := env.register(t, "amina@example.dz", domain.RoleProvider)

	result, err := env.svc.LoginUser(context.Background(), "amina@example.dz", "Secret123")
	if err != nil {
		t.Fatalf("LoginUser() error = %v", err)
	}
	if result.User.ID != user.ID {
		t.Errorf("User.ID = %d, want %d", result.User.ID, user.ID)
	}
	if want := env.clock.Add(time.Hour); !result.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", result.ExpiresAt, want)
	}

	claims, err := env.svc.TokenManager().ParseToken(result.Token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.RoleProvider || claims.Email != "amina@example.dz" {
		t.Errorf("claims = %+v", claims)
	}

	for _, tc := range []struct{ email, password string }{
		{"amina@example.dz", "wrong-password1"},
		{"nobody@example.dz", "Secret123"},
	} {
		if _, err := env.svc.LoginUser(context.Background(), tc.email, tc.password); !errors.Is(err, service.ErrInvalidCredentials) {
			t.Errorf("LoginUser(%s) error = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}
}

func TestAuthService_LoginUser_Inactive(t *testing.T) {
	env := setupTestService(t)
	user := env.register(t, "gone@example.dz", domain.RoleCustomer)
	_ = env.repo.SetActive(context.Background(), user.ID, false)

	if _, err := env.svc.LoginUser(context.Background(), "gone@example.dz", "Secret123"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("LoginUser() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthService_LoginUser_TouchFailureIsNotFatal(t *testing.T) {
	env := setupTestService(t)
	env.register(t, "amina@example.dz", domain.RoleCustomer)
	env.repo.touchErr = errRepo

	if _, err := env.svc.LoginUser(context.Background(), "amina@example.dz", "Secret123"); err != nil {
		t.Errorf("LoginUser() error = %v", err)
	}
}

func TestAuthService_VerifyEmail(t *testing.T) {
	env := setupTestService(t)
	user := env.register(t, "amina@example.dz", domain.RoleCustomer)
	ctx := context.Background()

	if err := env.svc.VerifyEmail(ctx, ""); !errors.Is(err, service.ErrInvalidVerificationToken) {
		t.Errorf("VerifyEmail(\"\") error = %v", err)
	}
	if err := env.svc.VerifyEmail(ctx, "bogus"); !errors.Is(err, service.ErrInvalidVerificationToken) {
		t.Errorf("VerifyEmail(bogus) error = %v", err)
	}
	if err := env.svc.VerifyEmail(ctx, *user.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	stored, _ := env.repo.GetByID(ctx, user.ID)
	if !stored.IsVerified {
		t.Error("user not verified")
	}
	if err := env.svc.VerifyEmail(ctx, *user.VerificationToken); !errors.Is(err, service.ErrInvalidVerificationToken) {
		t.Errorf("reused token error = %v", err)
	}
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := setupTestService(t)
	user := env.register(t, "amina@example.dz", domain.RoleCustomer)
	ctx := context.Background()

	if err := env.svc.RequestPasswordReset(ctx, "nobody@example.dz"); err != nil {
		t.Errorf("unknown email should succeed silently, got %v", err)
	}
	sentBefore := len(env.mail.sent)

	if err := env.svc.RequestPasswordReset(ctx, "amina@example.dz"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(env.mail.sent) != sentBefore+1 {
		t.Fatalf("reset email not sent")
	}
	stored, _ := env.repo.GetByID(ctx, user.ID)
	if stored.ResetToken == nil {
		t.Fatal("reset token not stored")
	}
	token := *stored.ResetToken
	if !strings.Contains(env.mail.last(t).Body, "/reset-password?token="+token) {
		t.Errorf("reset email body = %q", env.mail.last(t).Body)
	}

	if err := env.svc.ResetPassword(ctx, "bogus", "NewSecret1"); !errors.Is(err, service.ErrInvalidResetToken) {
		t.Errorf("ResetPassword(bogus) error = %v", err)
	}
	if err := env.svc.ResetPassword(ctx, token, "NewSecret1"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if err := env.svc.ResetPassword(ctx, token, "Other1234"); !errors.Is(err, service.ErrInvalidResetToken) {
		t.Errorf("reused reset token error = %v", err)
	}

	if _, err := env.svc.LoginUser(ctx, "amina@example.dz", "Secret123"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("old password still works: %v", err)
	}
	if _, err := env.svc.LoginUser(ctx, "amina@example.dz", "NewSecret1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestAuthService_PasswordResetExpires(t *testing.T) {
	env := setupTestService(t)
	user := env.register(t, "amina@example.dz", domain.RoleCustomer)
	ctx := context.Background()

	if err := env.svc.RequestPasswordReset(ctx, "amina@example.dz"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	stored, _ := env.repo.GetByID(ctx, user.ID)

	*env.clock = env.clock.Add(30 * time.Minute)
	if err := env.svc.ResetPassword(ctx, *stored.ResetToken, "NewSecret1"); !errors.Is(err, service.ErrInvalidResetToken) {
		t.Errorf("expired reset token error = %v, want ErrInvalidResetToken", err)
	}
}

func TestAuthService_SetUserActive(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	target := env.register(t, "amina@example.dz", domain.RoleProvider)

	admin := &domain.AuthenticatedUser{ID: 100, Role: domain.RoleAdmin}
	customer := &domain.AuthenticatedUser{ID: 101, Role: domain.RoleCustomer}

	if _, err := env.svc.SetUserActive(ctx, nil, target.ID, false); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("anonymous error = %v", err)
	}
	if _, err := env.svc.SetUserActive(ctx, customer, target.ID, false); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("customer error = %v", err)
	}
	if _, err := env.svc.SetUserActive(ctx, admin, admin.ID, false); !errors.Is(err, service.ErrSelfDeactivation) {
		t.Errorf("self deactivation error = %v", err)
	}
	if _, err := env.svc.SetUserActive(ctx, admin, 999, false); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("missing user error = %v", err)
	}

	updated, err := env.svc.SetUserActive(ctx, admin, target.ID, false)
	if err != nil {
		t.Fatalf("SetUserActive() error = %v", err)
	}
	if updated.IsActive {
		t.Error("user still active")
	}
	if _, err := env.repo.FindActiveByID(ctx, target.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("FindActiveByID() after deactivation error = %v", err)
	}
}

func TestAuthService_Events(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	user := env.register(t, "amina@example.dz", domain.RoleCustomer)

	if _, err := env.svc.LoginUser(ctx, "amina@example.dz", "Secret123"); err != nil {
		t.Fatalf("LoginUser() error = %v", err)
	}
	env.svc.Logout(ctx, domain.NewAuthenticatedUser(user))
	env.svc.Logout(ctx, nil)

	want := []events.EventType{events.EventUserRegistered, events.EventUserLoggedIn, events.EventUserLoggedOut}
	if len(env.events) != len(want) {
		t.Fatalf("events = %v, want %v", env.events, want)
	}
	for i := range want {
		if env.events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, env.events[i], want[i])
		}
	}
}

func TestAuthService_CurrentUser(t *testing.T) {
	env := setupTestService(t)
	user := env.register(t, "amina@example.dz", domain.RoleCustomer)

	if _, err := env.svc.CurrentUser(context.Background(), nil); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("CurrentUser(nil) error = %v", err)
	}
	got, err := env.svc.CurrentUser(context.Background(), domain.NewAuthenticatedUser(user))
	if err != nil || got.ID != user.ID {
		t.Errorf("CurrentUser() = %+v, %v", got, err)
	}
}
