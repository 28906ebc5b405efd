package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/corezen/corezen/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	GetTenant(ctx context.Context, id int64) (Tenant, error)
	GetStaff(ctx context.Context, id int64) (Staff, error)
	InsertStaff(ctx context.Context, s Staff) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps staff authentication and management rules.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	bcryptCost int
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

// Authenticate resolves an API key of the form "<staffID>.<secret>".
func (s *Service) Authenticate(ctx context.Context, apiKey string) (Actor, error) {
	idPart, secret, ok := strings.Cut(strings.TrimSpace(apiKey), ".")
	if !ok || secret == "" {
		return Actor{}, ErrUnauthenticated
	}
	staffID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || staffID <= 0 {
		return Actor{}, ErrUnauthenticated
	}
	staff, err := s.repo.GetStaff(ctx, staffID)
	if errors.Is(err, ErrStaffNotFound) {
		return Actor{}, ErrUnauthenticated
	}
	if err != nil {
		return Actor{}, fmt.Errorf("tenancy: load staff %d: %w", staffID, err)
	}
	if !staff.IsActive || staff.APIKeyHash == "" {
		return Actor{}, ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.APIKeyHash), []byte(secret)); err != nil {
		return Actor{}, ErrUnauthenticated
	}
	return staff.Actor(), nil
}

// CreateStaffInput describes a new staff member.
type CreateStaffInput struct {
	TenantID int64
	Username string
	Role     Role
	Initials string
}

// CreatedStaff carries the new staff member and its one-time API key.
type CreatedStaff struct {
	Staff  Staff
	APIKey string
}

// CreateStaff registers a staff member. Only ADMIN actors may do this.
func (s *Service) CreateStaff(ctx context.Context, actor Actor, input CreateStaffInput) (CreatedStaff, error) {
	if err := actor.Authorize(input.TenantID); err != nil {
		return CreatedStaff{}, err
	}
	if !actor.HasRole(RoleAdmin) {
		return CreatedStaff{}, ErrRoleNotPermitted
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Initials = strings.ToUpper(strings.TrimSpace(input.Initials))
	if input.Username == "" {
		return CreatedStaff{}, shared.Validation("tenancy: username required")
	}
	if !input.Role.Valid() {
		return CreatedStaff{}, shared.Validation(fmt.Sprintf("tenancy: unknown role %q", input.Role))
	}
	if len(input.Initials) > 8 {
		return CreatedStaff{}, shared.Validation("tenancy: initials too long")
	}
	tenant, err := s.repo.GetTenant(ctx, input.TenantID)
	if err != nil {
		return CreatedStaff{}, err
	}
	if !tenant.IsActive {
		return CreatedStaff{}, ErrTenantInactive
	}

	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return CreatedStaff{}, fmt.Errorf("tenancy: hash api key: %w", err)
	}
	staff := Staff{
		TenantID:   input.TenantID,
		Username:   input.Username,
		Role:       input.Role,
		Initials:   input.Initials,
		IsActive:   true,
		APIKeyHash: string(hash),
	}
	id, err := s.repo.InsertStaff(ctx, staff)
	if err != nil {
		return CreatedStaff{}, err
	}
	staff.ID = id

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			ActorID:  actor.StaffID,
			Action:   "staff:create",
			Entity:   "staff",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"username": staff.Username, "role": string(staff.Role)},
		})
	}
	return CreatedStaff{Staff: staff, APIKey: fmt.Sprintf("%d.%s", id, secret)}, nil
}
