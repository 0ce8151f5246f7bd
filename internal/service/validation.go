package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/meshfin/financeiro-api/internal/domain"
)

const (
	minText = 3
	maxText = 255
)

func required(field string) error {
	return &domain.ErrValidation{Field: field, Message: "campo obrigatório"}
}

func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min || n > max {
		return &domain.ErrValidation{Field: field, Message: fmt.Sprintf("deve ter entre %d e %d caracteres", min, max)}
	}
	return nil
}

func checkRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &domain.ErrValidation{Field: field, Message: fmt.Sprintf("deve estar entre %d e %d", min, max)}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}
