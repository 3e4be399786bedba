package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRuleParse      = errors.New("rule parse failure")
	ErrEmbedding      = errors.New("embedding failure")
	ErrModelDetection = errors.New("model detection failure")
	ErrReconciliation = errors.New("reconciliation failure")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
