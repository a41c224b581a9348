package service

import (
	"context"
	"errors"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/progress"
)

// GetBatchStatus returns a one-time snapshot of every file in the batch.
func (h *ServiceHandler) GetBatchStatus(batchID string) (*api.BatchStatus, error) {
	record, err := h.coordinator.Status(batchID)
	if err != nil {
		if errors.Is(err, progress.ErrBatchNotFound) {
			return nil, NewErrBatchNotFound(batchID)
		}
		return nil, err
	}
	status := record.ToApiResource()
	return &status, nil
}

// SubscribeBatch attaches a live subscriber to the batch's progress feed.
// The returned snapshot is taken atomically with the registration.
func (h *ServiceHandler) SubscribeBatch(batchID string) (*progress.Subscriber, *progress.BatchRecord, error) {
	sub, record, err := h.coordinator.Subscribe(batchID)
	if err != nil {
		if errors.Is(err, progress.ErrBatchNotFound) {
			return nil, nil, NewErrBatchNotFound(batchID)
		}
		return nil, nil, err
	}
	return sub, record, nil
}

func (h *ServiceHandler) UnsubscribeBatch(sub *progress.Subscriber) {
	h.coordinator.Unsubscribe(sub)
}

// TerminateBatch cancels in-flight files and deletes incomplete artifacts
// while keeping completed documents.
func (h *ServiceHandler) TerminateBatch(ctx context.Context, batchID string) (*api.BatchTerminateResponse, error) {
	resp, err := h.coordinator.Terminate(ctx, batchID)
	if err != nil {
		if errors.Is(err, progress.ErrBatchNotFound) {
			return nil, NewErrBatchNotFound(batchID)
		}
		return nil, err
	}
	return resp, nil
}
