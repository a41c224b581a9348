package service

import (
	"fmt"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrDocumentNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "document")
}

func NewErrCategoryNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "category")
}

func NewErrChatNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "chat")
}

func NewErrBatchNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "batch")
}

type ErrInvalidRequest struct {
	error
}

func NewErrInvalidRequest(message string) *ErrInvalidRequest {
	return &ErrInvalidRequest{fmt.Errorf("bad request: %s", message)}
}

func NewErrTooManyFiles(max int) *ErrInvalidRequest {
	return NewErrInvalidRequest(fmt.Sprintf("Maximum %d files allowed per batch", max))
}

func NewErrNoValidFiles() *ErrInvalidRequest {
	return NewErrInvalidRequest("No valid PDF files found in batch")
}

type ErrDuplicateResource struct {
	error
}

func NewErrDuplicateCategory(name string) *ErrDuplicateResource {
	return &ErrDuplicateResource{fmt.Errorf("category %q already exists", name)}
}
