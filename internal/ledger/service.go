package ledger

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	CreateContact(ctx context.Context, c Contact) (Contact, error)
	ListAccounts(ctx context.Context, scope tenancy.Scope) ([]Account, error)
	ListContacts(ctx context.Context, scope tenancy.Scope, filter ContactFilter, page shared.Page) ([]Contact, error)
	ListTransactions(ctx context.Context, scope tenancy.Scope, filter TransactionFilter, page shared.Page) ([]Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages accounts and contacts. Balances are only ever changed by
// the posting engine through Apply.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateAccountInput describes a new capital account.
type CreateAccountInput struct {
	TenantID       int64
	Name           string
	InitialBalance decimal.Decimal
}

// CreateAccount opens a capital account with CurrentBalance = InitialBalance.
func (s *Service) CreateAccount(ctx context.Context, actor tenancy.Actor, input CreateAccountInput) (Account, error) {
	if err := actor.Authorize(input.TenantID); err != nil {
		return Account{}, err
	}
	if !actor.HasRole(tenancy.RoleAdmin, tenancy.RoleFinance) {
		return Account{}, tenancy.ErrRoleNotPermitted
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Account{}, shared.Validation("ledger: account name required")
	}
	if !input.InitialBalance.Equal(input.InitialBalance.Round(2)) {
		return Account{}, ErrInvalidAmount
	}
	acct, err := s.repo.CreateAccount(ctx, Account{TenantID: input.TenantID, Name: name, InitialBalance: input.InitialBalance})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actor, input.TenantID, "account:create", "capital_account", acct.ID, map[string]any{"name": acct.Name, "initial_balance": acct.InitialBalance.String()})
	return acct, nil
}

// CreateContactInput describes a new contact.
type CreateContactInput struct {
	TenantID int64
	Name     string
	Phone    string
	Address  string
}

// CreateContact registers a customer or supplier with a zero balance.
func (s *Service) CreateContact(ctx context.Context, actor tenancy.Actor, input CreateContactInput) (Contact, error) {
	if err := actor.Authorize(input.TenantID); err != nil {
		return Contact{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Contact{}, shared.Validation("ledger: contact name required")
	}
	c, err := s.repo.CreateContact(ctx, Contact{
		TenantID: input.TenantID,
		Name:     name,
		Phone:    strings.TrimSpace(input.Phone),
		Address:  strings.TrimSpace(input.Address),
	})
	if err != nil {
		return Contact{}, err
	}
	s.record(ctx, actor, input.TenantID, "contact:create", "contact", c.ID, map[string]any{"name": c.Name})
	return c, nil
}

// ListAccounts lists accounts in scope.
func (s *Service) ListAccounts(ctx context.Context, scope tenancy.Scope) ([]Account, error) {
	return s.repo.ListAccounts(ctx, scope)
}

// ListContacts lists contacts in scope.
func (s *Service) ListContacts(ctx context.Context, scope tenancy.Scope, filter ContactFilter, page shared.Page) ([]Contact, error) {
	return s.repo.ListContacts(ctx, scope, filter, page)
}

// ListTransactions lists transactions in scope.
func (s *Service) ListTransactions(ctx context.Context, scope tenancy.Scope, filter TransactionFilter, page shared.Page) ([]Transaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidType
	}
	return s.repo.ListTransactions(ctx, scope, filter, page)
}

func (s *Service) record(ctx context.Context, actor tenancy.Actor, tenantID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actor.StaffID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
