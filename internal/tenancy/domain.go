package tenancy

import (
	"time"

	"github.com/corezen/corezen/internal/shared"
)

// Role enumerates staff roles.
type Role string

const (
	// RoleAdmin manages staff and sees every report.
	RoleAdmin Role = "ADMIN"
	// RoleFinance handles accounts, repayments and reports.
	RoleFinance Role = "FINANCE"
	// RoleSales receives, sells and rents stock.
	RoleSales Role = "SALES"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFinance, RoleSales:
		return true
	}
	return false
}

// DefaultInitials is used in product codes when a staff member has none.
const DefaultInitials = "XX"

// Tenant is one isolated business.
type Tenant struct {
	ID           int64
	Code         string
	Name         string
	IsActive     bool
	AccountLimit int
	CreatedAt    time.Time
}

// Staff is an operator belonging to a tenant.
type Staff struct {
	ID         int64
	TenantID   int64
	Username   string
	Role       Role
	Initials   string
	Superuser  bool
	IsActive   bool
	APIKeyHash string
	CreatedAt  time.Time
}

// EffectiveInitials returns the staff initials or DefaultInitials.
func (s Staff) EffectiveInitials() string {
	if s.Initials == "" {
		return DefaultInitials
	}
	return s.Initials
}

// Actor returns the request principal for s.
func (s Staff) Actor() Actor {
	return Actor{
		TenantID:  s.TenantID,
		StaffID:   s.ID,
		Role:      s.Role,
		Initials:  s.EffectiveInitials(),
		Superuser: s.Superuser,
	}
}

// Actor identifies who performs an operation.
type Actor struct {
	TenantID  int64
	StaffID   int64
	Role      Role
	Initials  string
	Superuser bool
}

// Authorize checks that the actor may act on tenantID.
func (a Actor) Authorize(tenantID int64) error {
	if tenantID <= 0 {
		return ErrTenantRequired
	}
	if a.Superuser || a.TenantID == tenantID {
		return nil
	}
	return ErrTenantMismatch
}

// HasRole reports whether the actor holds one of roles. Superusers hold all.
func (a Actor) HasRole(roles ...Role) bool {
	if a.Superuser {
		return true
	}
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// EffectiveInitials returns the actor initials or DefaultInitials.
func (a Actor) EffectiveInitials() string {
	if a.Initials == "" {
		return DefaultInitials
	}
	return a.Initials
}

// OperatorID returns the staff id recorded on transactions, or nil.
func (a Actor) OperatorID() *int64 {
	if a.StaffID == 0 {
		return nil
	}
	id := a.StaffID
	return &id
}

// Scope returns the read scope for list queries.
func (a Actor) Scope() Scope {
	return Scope{TenantID: a.TenantID, All: a.Superuser}
}

// Scope restricts reads to one tenant unless All is set.
type Scope struct {
	TenantID int64
	All      bool
}

// Includes reports whether rows of tenantID are visible.
func (s Scope) Includes(tenantID int64) bool {
	return s.All || s.TenantID == tenantID
}

// Narrow restricts a superuser scope to one tenant when tenantID is set.
func (s Scope) Narrow(tenantID int64) Scope {
	if tenantID <= 0 {
		return s
	}
	if s.All {
		return Scope{TenantID: tenantID}
	}
	return s
}

var (
	// ErrTenantRequired indicates the operation has no tenant.
	ErrTenantRequired = shared.Validation("tenancy: tenant required")
	// ErrTenantMismatch indicates the actor does not belong to the tenant.
	ErrTenantMismatch = shared.Forbidden("tenancy: actor does not belong to tenant")
	// ErrTenantInactive indicates the tenant is disabled.
	ErrTenantInactive = shared.Forbidden("tenancy: tenant is inactive")
	// ErrRoleNotPermitted indicates the actor's role may not perform the action.
	ErrRoleNotPermitted = shared.Forbidden("tenancy: role not permitted")
	// ErrUnauthenticated indicates a missing or invalid API key.
	ErrUnauthenticated = shared.Forbidden("tenancy: invalid api key")
	// ErrTenantNotFound indicates an unknown tenant.
	ErrTenantNotFound = shared.NotFound("tenancy: tenant not found")
	// ErrStaffNotFound indicates an unknown staff member.
	ErrStaffNotFound = shared.NotFound("tenancy: staff not found")
	// ErrDuplicateUsername indicates the username is taken.
	ErrDuplicateUsername = shared.Conflict("tenancy: username already exists")
)
