// Package storage provides the record persistence layer for classbot.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/classbot/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidTag        = errors.New("invalid checkpoint tag")
	ErrUnknownDriver     = errors.New("unknown storage driver")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateCollection(c model.Collection) error {
	if !slices.Contains(model.Collections(), c) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return nil
}

// validateTag rejects checkpoint names that could escape the checkpoint directory.
func validateTag(tag string) error {
	if err := validateString(tag, "tag"); err != nil {
		return err
	}
	if strings.Contains(tag, "/") || strings.Contains(tag, "\\") || strings.Contains(tag, "..") {
		return fmt.Errorf("%w: cannot contain path separators", ErrInvalidTag)
	}
	return nil
}

func validateOp(ctx context.Context, c model.Collection) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return validateCollection(c)
}
