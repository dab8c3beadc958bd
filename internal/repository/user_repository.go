package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// UserRepository reads and writes user documents.
type UserRepository struct {
	store docstore.Store
}

// NewUserRepository builds a user repository.
func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

// List returns users matching the filter with the total count.
func (r *UserRepository) List(ctx context.Context, tenantID string, filter models.UserFilter) ([]models.User, int, error) {
	q := docstore.Query{Collection: ColUsers}
	if filter.Role != nil {
		q.Filters = append(q.Filters, docstore.Filter{Field: "role", Op: docstore.OpEqual, Value: string(*filter.Role)})
	}
	if filter.ClassID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "homeroomClassId", Op: docstore.OpEqual, Value: filter.ClassID})
	}

	docs, err := r.store.Query(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	users, err := decodeAll[models.User](docs)
	if err != nil {
		return nil, 0, err
	}

	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		filtered := users[:0]
		for _, u := range users {
			if strings.Contains(strings.ToLower(u.FullName()), needle) ||
				strings.Contains(strings.ToLower(u.Email), needle) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		return users[i].FirstName < users[j].FirstName
	})
	page, total := paginate(users, filter.Page, filter.PageSize)
	return page, total, nil
}

// FindByID loads one user.
func (r *UserRepository) FindByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, tenantID, ColUsers, id)
	if err != nil {
		return nil, err
	}
	return decode[models.User](doc)
}

// FindByEmail returns the user with the given email, or
// docstore.ErrNotFound.
func (r *UserRepository) FindByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColUsers,
		Filters:    []docstore.Filter{{Field: "email", Op: docstore.OpEqual, Value: email}},
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return decode[models.User](&docs[0])
}

// ExistsByEmail reports whether another user already has the email.
// Advisory only: the check and the subsequent write are not atomic.
func (r *UserRepository) ExistsByEmail(ctx context.Context, tenantID, email, excludeID string) (bool, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColUsers,
		Filters:    []docstore.Filter{{Field: "email", Op: docstore.OpEqual, Value: email}},
	})
	if err != nil {
		return false, err
	}
	for i := range docs {
		if docs[i].ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// ListByRole returns every user with the given role.
func (r *UserRepository) ListByRole(ctx context.Context, tenantID string, role models.UserRole) ([]models.User, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColUsers,
		Filters:    []docstore.Filter{{Field: "role", Op: docstore.OpEqual, Value: string(role)}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.User](docs)
}

// ListAll returns every user of the tenant. Used by delete cascades,
// which are correctness-by-exhaustive-scan.
func (r *UserRepository) ListAll(ctx context.Context, tenantID string) ([]models.User, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{Collection: ColUsers})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.User](docs)
}

// Save writes the user document.
func (r *UserRepository) Save(ctx context.Context, tenantID string, user *models.User) error {
	data, err := encode(user)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColUsers, user.ID, data)
}

// Delete removes the user document.
func (r *UserRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, ColUsers, id)
}
