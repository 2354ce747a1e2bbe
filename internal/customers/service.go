package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rightupnext/billing/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, tenantDB string, req CreateCustomerRequest) (*Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, shared.Validationf("customer name is required")
	}
	customer := Customer{
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
		GSTNumber: strings.ToUpper(strings.TrimSpace(req.GSTNumber)),
	}
	id, err := s.repo.Create(ctx, tenantDB, customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, tenantDB, id)
}

func (s *Service) Update(ctx context.Context, tenantDB string, id int64, req UpdateCustomerRequest) (*Customer, error) {
	existing, err := s.repo.Get(ctx, tenantDB, id)
	if err != nil {
		return nil, err
	}
	if existing.IsDeleted {
		return nil, shared.NotFoundf("customer %d", id)
	}

	var updates []field
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, shared.Validationf("customer name cannot be empty")
		}
		updates = append(updates, field{"name", name})
	}
	if req.Phone != nil {
		updates = append(updates, field{"phone", strings.TrimSpace(*req.Phone)})
	}
	if req.Email != nil {
		updates = append(updates, field{"email", strings.TrimSpace(*req.Email)})
	}
	if req.Address != nil {
		updates = append(updates, field{"address", strings.TrimSpace(*req.Address)})
	}
	if req.GSTNumber != nil {
		updates = append(updates, field{"gst_number", strings.ToUpper(strings.TrimSpace(*req.GSTNumber))})
	}
	if len(updates) == 0 {
		return existing, nil
	}

	if err := s.repo.Update(ctx, tenantDB, id, updates); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.repo.Get(ctx, tenantDB, id)
}

func (s *Service) Get(ctx context.Context, tenantDB string, id int64) (*Customer, error) {
	c, err := s.repo.Get(ctx, tenantDB, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted {
		return nil, shared.NotFoundf("customer %d", id)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, tenantDB string, req ListCustomersRequest) ([]Customer, shared.Pagination, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	req.Search = strings.TrimSpace(req.Search)
	customers, total, err := s.repo.List(ctx, tenantDB, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return customers, shared.NewPagination(req.Page, req.Limit, total), nil
}

// Delete hides the customer from listings; past invoices keep their copy.
func (s *Service) Delete(ctx context.Context, tenantDB string, id int64) error {
	return s.repo.SoftDelete(ctx, tenantDB, id)
}
