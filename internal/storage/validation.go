package storage

import (
	"context"

	"github.com/opencpa/ledgerpilot/internal/common"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return &common.ValidationError{Field: "ctx", Reason: "cannot be nil"}
	}
	return ctx.Err()
}

func validateString(value, field string) error {
	if value == "" {
		return &common.ValidationError{Field: field, Reason: "cannot be empty"}
	}
	return nil
}

func validateID(id int64, field string) error {
	if id <= 0 {
		return &common.ValidationError{Field: field, Reason: "must be positive"}
	}
	return nil
}
