package repository

import (
	"context"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// ParentLinkRepository reads and writes parent link requests.
type ParentLinkRepository struct {
	store docstore.Store
}

// NewParentLinkRepository builds a parent link repository.
func NewParentLinkRepository(store docstore.Store) *ParentLinkRepository {
	return &ParentLinkRepository{store: store}
}

// FindByID loads one request.
func (r *ParentLinkRepository) FindByID(ctx context.Context, tenantID, id string) (*models.ParentLinkRequest, error) {
	doc, err := r.store.Get(ctx, tenantID, ColParentLinks, id)
	if err != nil {
		return nil, err
	}
	return decode[models.ParentLinkRequest](doc)
}

// ListByParent returns every request made by a parent.
func (r *ParentLinkRepository) ListByParent(ctx context.Context, tenantID, parentID string) ([]models.ParentLinkRequest, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColParentLinks,
		Filters:    []docstore.Filter{{Field: "parentId", Op: docstore.OpEqual, Value: parentID}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.ParentLinkRequest](docs)
}

// ListPending returns every request awaiting review.
func (r *ParentLinkRepository) ListPending(ctx context.Context, tenantID string) ([]models.ParentLinkRequest, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColParentLinks,
		Filters:    []docstore.Filter{{Field: "status", Op: docstore.OpEqual, Value: string(models.ParentLinkPending)}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.ParentLinkRequest](docs)
}

// Save writes the request document.
func (r *ParentLinkRepository) Save(ctx context.Context, tenantID string, req *models.ParentLinkRequest) error {
	data, err := encode(req)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColParentLinks, req.ID, data)
}

// Delete removes the request document.
func (r *ParentLinkRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, ColParentLinks, id)
}
