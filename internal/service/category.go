package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/internal/store/model"
	"go.uber.org/zap"
)

func (h *ServiceHandler) ListCategories(ctx context.Context) (api.CategoryList, error) {
	categories, err := h.store.Category().List(ctx)
	if err != nil {
		return nil, err
	}
	return categories.ToApiResource(), nil
}

func (h *ServiceHandler) CreateCategory(ctx context.Context, request api.CategoryCreate) (*api.Category, error) {
	category := model.Category{
		ID:          "cat_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Name:        request.Name,
		Description: request.Description,
	}
	created, err := h.store.Category().Create(ctx, category)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrDuplicateCategory(request.Name)
		}
		return nil, err
	}
	resource := created.ToApiResource()
	return &resource, nil
}

func (h *ServiceHandler) GetCategory(ctx context.Context, id string) (*api.Category, error) {
	category, err := h.store.Category().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrCategoryNotFound(id)
		}
		return nil, err
	}
	resource := category.ToApiResource()
	return &resource, nil
}

// DeleteCategory removes the category together with every document in it.
func (h *ServiceHandler) DeleteCategory(ctx context.Context, id string) error {
	if _, err := h.store.Category().Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrCategoryNotFound(id)
		}
		return err
	}

	documents, err := h.store.Document().List(ctx, store.NewDocumentQueryFilter().ByCategoryID(id))
	if err != nil {
		return err
	}
	for _, document := range documents {
		if err := h.DeleteDocument(ctx, document.ID); err != nil {
			zap.S().Named("service").Warnw("failed to delete document during category deletion",
				"category_id", id, "document_id", document.ID, "error", err)
		}
	}
	return h.store.Category().Delete(ctx, id)
}
