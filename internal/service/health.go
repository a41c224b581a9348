package service

import "context"

func (h *ServiceHandler) Health(ctx context.Context) error {
	return nil
}
