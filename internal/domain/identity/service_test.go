package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/r3hc/ovr/internal/domain/audit"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
)

// -- Mock Repositories --

type mockUserRepo struct {
	users    map[uuid.UUID]*User
	detached []uuid.UUID
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("User with this email already exists")
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (m *mockUserRepo) GetByExternalSubject(_ context.Context, subject string) (*User, error) {
	for _, u := range m.users {
		if u.ExternalSubject != nil && *u.ExternalSubject == subject {
			return u, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (m *mockUserRepo) LinkExternalSubject(_ context.Context, id uuid.UUID, subject string) error {
	m.users[id].ExternalSubject = &subject
	return nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*UserWithStats, int, error) {
	var out []*UserWithStats
	for _, u := range m.users {
		out = append(out, &UserWithStats{User: *u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("User not found")
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.users[id].LastLoginAt = &at
	return nil
}

func (m *mockUserRepo) DetachReferences(_ context.Context, id uuid.UUID) error {
	m.detached = append(m.detached, id)
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return apperr.NotFound("User not found")
	}
	delete(m.users, id)
	return nil
}

type mockRegistrationRepo struct {
	regs   map[int]*Registration
	nextID int
}

func newMockRegistrationRepo() *mockRegistrationRepo {
	return &mockRegistrationRepo{regs: make(map[int]*Registration)}
}

func (m *mockRegistrationRepo) Create(_ context.Context, r *Registration) error {
	m.nextID++
	r.ID = m.nextID
	r.RequestedAt = time.Now()
	m.regs[r.ID] = r
	return nil
}

func (m *mockRegistrationRepo) GetByID(_ context.Context, id int) (*Registration, error) {
	r, ok := m.regs[id]
	if !ok {
		return nil, apperr.NotFound("Registration not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRegistrationRepo) GetByEmail(_ context.Context, email string) (*Registration, error) {
	for _, r := range m.regs {
		if strings.EqualFold(r.Email, email) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("Registration not found")
}

func (m *mockRegistrationRepo) List(_ context.Context, status string) ([]*Registration, error) {
	var out []*Registration
	for _, r := range m.regs {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRegistrationRepo) Review(_ context.Context, r *Registration) error {
	stored, ok := m.regs[r.ID]
	if !ok || stored.Status != RegistrationPending {
		return apperr.Conflict("Registration has already been reviewed")
	}
	cp := *r
	m.regs[r.ID] = &cp
	return nil
}

type auditStub struct {
	entries     []audit.Entry
	deletedFor  []uuid.UUID
	failOnAudit string
}

func (a *auditStub) Record(_ context.Context, e audit.Entry) error {
	if e.Action == a.failOnAudit {
		return errors.New("audit unavailable")
	}
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditStub) DeleteForUser(_ context.Context, userID uuid.UUID) error {
	a.deletedFor = append(a.deletedFor, userID)
	return nil
}

func (a *auditStub) actions() []string {
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type revokerStub struct {
	revoked []string
}

func (r *revokerStub) Revoke(_ context.Context, p *auth.Principal) error {
	r.revoked = append(r.revoked, p.TokenID)
	return nil
}

type testEnv struct {
	svc    *Service
	users  *mockUserRepo
	regs   *mockRegistrationRepo
	audit  *auditStub
	tokens *auth.TokenIssuer
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:  newMockUserRepo(),
		regs:   newMockRegistrationRepo(),
		audit:  &auditStub{},
		tokens: auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), "ovr-test", time.Hour),
	}
	env.svc = NewService(env.users, env.regs, db.NoTx{}, env.audit, auth.NewPasswordHasher(4), env.tokens, zerolog.Nop())
	return env
}

func (env *testEnv) addUser(t *testing.T, email, password, role string, facilityID int) *User {
	t.Helper()
	hash, err := auth.NewPasswordHasher(4).Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &User{
		Email:        email,
		Role:         role,
		FacilityID:   &facilityID,
		IsActive:     true,
		IsApproved:   true,
		PasswordHash: &hash,
		AuthProvider: auth.ProviderLocal,
	}
	if err := env.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func adminOf(u *User) *auth.Principal {
	return &auth.Principal{UserID: u.ID, Email: u.Email, Role: auth.RoleAdmin}
}

func validRegistration(email string) RegisterInput {
	return RegisterInput{
		Email:      email,
		FirstName:  "Sara",
		LastName:   "Alharbi",
		FacilityID: 2,
		Password:   "s3cure-pass",
	}
}

// -- Registration --

func TestRegister(t *testing.T) {
	env := newTestEnv()

	reg, err := env.svc.Register(context.Background(), validRegistration("  Nurse@Example.com "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Status != RegistrationPending {
		t.Errorf("expected pending, got %s", reg.Status)
	}
	if reg.Email != "nurse@example.com" {
		t.Errorf("expected normalized email, got %s", reg.Email)
	}
	if reg.PasswordHash == "" || reg.PasswordHash == "s3cure-pass" {
		t.Error("expected password to be hashed")
	}
	if got := env.audit.actions(); len(got) != 1 || got[0] != audit.ActionRegister {
		t.Errorf("expected register audit entry, got %v", got)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		mod  func(*RegisterInput)
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
		{"missing first name", func(in *RegisterInput) { in.FirstName = " " }},
		{"missing facility", func(in *RegisterInput) { in.FacilityID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration("a@b.com")
			tt.mod(&in)
			_, err := env.svc.Register(context.Background(), in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegister_Conflicts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addUser(t, "taken@example.com", "password1", auth.RoleUser, 1)

	_, err := env.svc.Register(ctx, validRegistration("taken@example.com"))
	if !errors.Is(err, apperr.ErrConflict) || err.Error() != "User with this email already exists" {
		t.Errorf("expected existing user conflict, got %v", err)
	}

	if _, err := env.svc.Register(ctx, validRegistration("new@example.com")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = env.svc.Register(ctx, validRegistration("new@example.com"))
	if !errors.Is(err, apperr.ErrConflict) || err.Error() != "Registration request already exists for this email" {
		t.Errorf("expected existing registration conflict, got %v", err)
	}
}

func TestApproveRegistration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)
	reg, _ := env.svc.Register(ctx, validRegistration("staff@example.com"))

	u, err := env.svc.ApproveRegistration(ctx, adminOf(admin), reg.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RoleUser || !u.IsActive || !u.IsApproved {
		t.Errorf("expected active approved user, got %+v", u)
	}
	if u.FacilityID == nil || *u.FacilityID != 2 {
		t.Errorf("expected facility 2, got %v", u.FacilityID)
	}
	if u.PasswordHash == nil || *u.PasswordHash != reg.PasswordHash {
		t.Error("expected password hash to be copied from the registration")
	}

	stored := env.regs.regs[reg.ID]
	if stored.Status != RegistrationApproved || stored.ReviewedByID == nil || *stored.ReviewedByID != admin.ID {
		t.Errorf("expected approved registration stamped with reviewer, got %+v", stored)
	}

	_, err = env.svc.ApproveRegistration(ctx, adminOf(admin), reg.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict approving twice, got %v", err)
	}
}

func TestApproveRegistration_RequiresAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	staff := env.addUser(t, "staff@example.com", "password1", auth.RoleUser, 2)
	reg, _ := env.svc.Register(ctx, validRegistration("other@example.com"))

	p := &auth.Principal{UserID: staff.ID, Role: auth.RoleUser}
	_, err := env.svc.ApproveRegistration(ctx, p, reg.ID)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestRejectRegistration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)
	reg, _ := env.svc.Register(ctx, validRegistration("staff@example.com"))

	got, err := env.svc.RejectRegistration(ctx, adminOf(admin), reg.ID, " duplicate account ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != RegistrationRejected {
		t.Errorf("expected rejected, got %s", got.Status)
	}
	if got.RejectionReason == nil || *got.RejectionReason != "duplicate account" {
		t.Errorf("expected trimmed reason, got %v", got.RejectionReason)
	}
	if _, err := env.users.GetByEmail(ctx, "staff@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("expected no user to be created")
	}

	_, err = env.svc.ApproveRegistration(ctx, adminOf(admin), reg.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict approving a rejected registration, got %v", err)
	}
}

func TestListRegistrations_StatusFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)
	r1, _ := env.svc.Register(ctx, validRegistration("a@example.com"))
	env.svc.Register(ctx, validRegistration("b@example.com"))
	env.svc.RejectRegistration(ctx, adminOf(admin), r1.ID, "")

	pending, err := env.svc.ListRegistrations(ctx, adminOf(admin), RegistrationPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].Email != "b@example.com" {
		t.Errorf("expected only b@example.com pending, got %+v", pending)
	}

	_, err = env.svc.ListRegistrations(ctx, adminOf(admin), "archived")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

// -- Login --

func TestLogin_PendingRegistration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.svc.Register(ctx, validRegistration("x@y.com"))

	_, err := env.svc.Login(ctx, LoginInput{Email: "x@y.com", Password: "s3cure-pass"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err.Error() != "Your registration is pending approval. Please wait for admin approval." {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestLogin_RejectedRegistration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)
	reg, _ := env.svc.Register(ctx, validRegistration("x@y.com"))
	env.svc.RejectRegistration(ctx, adminOf(admin), reg.ID, "no")

	_, err := env.svc.Login(ctx, LoginInput{Email: "x@y.com", Password: "s3cure-pass"})
	if err == nil || err.Error() != "Your registration was rejected. Please contact admin for assistance." {
		t.Errorf("expected rejected message, got %v", err)
	}
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addUser(t, "user@example.com", "password1", auth.RoleUser, 1)
	inactive := env.addUser(t, "gone@example.com", "password1", auth.RoleUser, 1)
	inactive.IsActive = false
	external := env.addUser(t, "sso@example.com", "password1", auth.RoleUser, 1)
	external.AuthProvider = auth.ProviderOIDC

	tests := []struct {
		name    string
		in      LoginInput
		kind    error
		message string
	}{
		{"missing password", LoginInput{Email: "user@example.com"}, apperr.ErrValidation, "Email and password are required"},
		{"unknown email", LoginInput{Email: "nobody@example.com", Password: "password1"}, apperr.ErrUnauthorized, "Invalid email or password"},
		{"wrong password", LoginInput{Email: "user@example.com", Password: "wrong-pass"}, apperr.ErrUnauthorized, "Invalid email or password"},
		{"external account", LoginInput{Email: "sso@example.com", Password: "password1"}, apperr.ErrUnauthorized, "Invalid login method"},
		{"inactive", LoginInput{Email: "gone@example.com", Password: "password1"}, apperr.ErrForbidden, "Your account has been deactivated. Please contact admin."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Login(ctx, tt.in)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if err.Error() != tt.message {
				t.Errorf("expected %q, got %q", tt.message, err.Error())
			}
		})
	}
}

func TestLogin_IssuesToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	u := env.addUser(t, "user@example.com", "password1", auth.RoleUser, 3)

	sess, err := env.svc.Login(ctx, LoginInput{Email: "USER@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := env.tokens.Parse(sess.Token)
	if err != nil {
		t.Fatalf("issued token did not parse: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Role != auth.RoleUser {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.FacilityID == nil || *claims.FacilityID != 3 {
		t.Errorf("expected facility 3 in claims, got %v", claims.FacilityID)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
	if sess.User.LastLoginAt == nil {
		t.Error("expected last login to be stamped")
	}
	if got := env.audit.actions(); len(got) != 1 || got[0] != audit.ActionLogin {
		t.Errorf("expected login audit entry, got %v", got)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv()
	rev := &revokerStub{}
	env.svc.SetRevoker(rev)
	p := &auth.Principal{UserID: uuid.New(), Role: auth.RoleUser, TokenID: "jti-1"}

	if err := env.svc.Logout(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rev.revoked) != 1 || rev.revoked[0] != "jti-1" {
		t.Errorf("expected jti-1 revoked, got %v", rev.revoked)
	}
	if got := env.audit.actions(); len(got) != 1 || got[0] != audit.ActionLogout {
		t.Errorf("expected logout audit entry, got %v", got)
	}
}

// -- Principal resolution --

func TestResolveLocal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	u := env.addUser(t, "user@example.com", "password1", auth.RoleUser, 4)

	p, err := env.svc.ResolveLocal(ctx, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FacilityID == nil || *p.FacilityID != 4 || p.Provider != auth.ProviderLocal {
		t.Errorf("unexpected principal: %+v", p)
	}

	u.IsActive = false
	if _, err := env.svc.ResolveLocal(ctx, u.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected inactive user to be rejected, got %v", err)
	}

	if _, err := env.svc.ResolveLocal(ctx, uuid.New()); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unknown user to be unauthorized, got %v", err)
	}
}

func TestResolveExternal_LinksByEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	u := env.addUser(t, "doctor@example.com", "password1", auth.RoleUser, 1)

	p, err := env.svc.ResolveExternal(ctx, "idp|123", "Doctor@Example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != u.ID || p.Provider != auth.ProviderOIDC {
		t.Errorf("unexpected principal: %+v", p)
	}
	if u.ExternalSubject == nil || *u.ExternalSubject != "idp|123" {
		t.Error("expected subject to be linked")
	}

	p, err = env.svc.ResolveExternal(ctx, "idp|123", "")
	if err != nil || p.UserID != u.ID {
		t.Errorf("expected lookup by subject to succeed, got %v, %v", p, err)
	}

	_, err = env.svc.ResolveExternal(ctx, "idp|999", "stranger@example.com")
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unprovisioned identity to be unauthorized, got %v", err)
	}
}

// -- User administration --

func TestUpdateUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)
	u := env.addUser(t, "user@example.com", "password1", auth.RoleUser, 1)

	role := auth.RoleAdmin
	facility := 5
	active := false
	got, err := env.svc.UpdateUser(ctx, adminOf(admin), u.ID, UpdateUserInput{Role: &role, FacilityID: &facility, IsActive: &active})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != auth.RoleAdmin || *got.FacilityID != 5 || got.IsActive {
		t.Errorf("expected changes applied, got %+v", got)
	}
	last := env.audit.entries[len(env.audit.entries)-1]
	if last.Action != audit.ActionUpdateUser || last.Details["role"] != auth.RoleAdmin {
		t.Errorf("expected update_user audit with changes, got %+v", last)
	}

	bad := "superuser"
	_, err = env.svc.UpdateUser(ctx, adminOf(admin), u.ID, UpdateUserInput{Role: &bad})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)
	u := env.addUser(t, "user@example.com", "password1", auth.RoleUser, 1)

	if err := env.svc.DeleteUser(ctx, adminOf(admin), u.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := env.users.users[u.ID]; ok {
		t.Error("expected user to be deleted")
	}
	if len(env.users.detached) != 1 || env.users.detached[0] != u.ID {
		t.Error("expected references to be detached before delete")
	}
	if len(env.audit.deletedFor) != 1 || env.audit.deletedFor[0] != u.ID {
		t.Error("expected the user's audit entries to be purged")
	}
	if got := env.audit.actions(); len(got) != 1 || got[0] != audit.ActionDeleteUser {
		t.Errorf("expected delete_user audit entry, got %v", got)
	}
}

func TestDeleteUser_AuditFailureTolerated(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)
	u := env.addUser(t, "user@example.com", "password1", auth.RoleUser, 1)
	env.audit.failOnAudit = audit.ActionDeleteUser

	if err := env.svc.DeleteUser(ctx, adminOf(admin), u.ID); err != nil {
		t.Fatalf("expected deletion to succeed despite audit failure, got %v", err)
	}
	if _, ok := env.users.users[u.ID]; ok {
		t.Error("expected user to be deleted")
	}
}

func TestDeleteUser_Self(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser(t, "admin@r3hc.sa", "password1", auth.RoleAdmin, 1)

	err := env.svc.DeleteUser(context.Background(), adminOf(admin), admin.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict deleting self, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	facility := 1

	created, err := env.svc.EnsureAdmin(ctx, "admin@r3hc.sa", "Aa123@Aa", &facility)
	if err != nil || !created {
		t.Fatalf("expected admin to be created, got %v, %v", created, err)
	}
	created, err = env.svc.EnsureAdmin(ctx, "ADMIN@r3hc.sa", "Aa123@Aa", &facility)
	if err != nil || created {
		t.Errorf("expected second call to be a no-op, got %v, %v", created, err)
	}

	sess, err := env.svc.Login(ctx, LoginInput{Email: "admin@r3hc.sa", Password: "Aa123@Aa"})
	if err != nil {
		t.Fatalf("expected provisioned admin to log in: %v", err)
	}
	if sess.User.Role != auth.RoleAdmin {
		t.Errorf("expected admin role, got %s", sess.User.Role)
	}

	if _, err := env.svc.EnsureAdmin(ctx, "ops@r3hc.sa", "short", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for short password, got %v", err)
	}
}
