package service

import (
	"context"
	"fmt"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// Family groups provider types that share one external API.
type Family int

const (
	// FamilyMesh is provider types 1 and 2 (Zoop).
	FamilyMesh Family = iota + 1
	// FamilyUse is provider type 3.
	FamilyUse
)

func (f Family) filter(ids []int64) domain.EstablishmentFilter {
	if f == FamilyUse {
		return domain.EstablishmentFilter{IDs: ids, Types: []domain.ProviderType{domain.ProviderUse}}
	}
	return domain.EstablishmentFilter{IDs: ids, ExcludeType: domain.ProviderUse}
}

func (f Family) notFoundMessage() string {
	if f == FamilyUse {
		return "Unidades do tipo 3 não localizadas"
	}
	return "Unidades dos tipos 1 e 2 não localizadas"
}

func (f Family) String() string {
	if f == FamilyUse {
		return "use"
	}
	return "mesh"
}

const (
	noUnitsMsg        = "Usuário não possui unidades associadas para acesso."
	unitsForbiddenMsg = "Usuário não possui acesso às unidades solicitadas."
)

// EligibilityResolver decides which establishments a request may aggregate.
type EligibilityResolver struct {
	store port.EstablishmentStore
}

// NewEligibilityResolver creates a resolver over the establishment store.
func NewEligibilityResolver(store port.EstablishmentStore) *EligibilityResolver {
	return &EligibilityResolver{store: store}
}

// ResolveEligible returns the establishments of family the principal may see,
// ordered by name.
//
// Explicit ids are intersected with the principal's entitlements when the
// principal is restricted (non-nil Units). Without ids the principal's own
// entitlements are used, and having none is an authorization failure.
// An empty result after the family filter is a not-found failure.
func (r *EligibilityResolver) ResolveEligible(ctx context.Context, requestedIDs []int64, principal *domain.User, family Family) ([]domain.Establishment, error) {
	ctx, span := tracer.Start(ctx, "EligibilityResolver.ResolveEligible")
	defer span.End()
	span.SetAttributes(attribute.String("family", family.String()), attribute.Int("requested.count", len(requestedIDs)))

	var ids []int64
	switch {
	case len(requestedIDs) > 0:
		ids = dedupe(requestedIDs)
		if principal != nil && principal.Units != nil {
			ids = intersect(ids, principal.Units)
			if len(ids) == 0 {
				return nil, &domain.ErrForbidden{Action: unitsForbiddenMsg}
			}
		}
	case principal != nil && len(principal.Units) > 0:
		ids = dedupe(principal.Units)
	default:
		return nil, &domain.ErrForbidden{Action: noUnitsMsg}
	}

	ests, err := r.store.ListEstablishments(ctx, family.filter(ids))
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	if len(ests) == 0 {
		return nil, &domain.ErrNotFound{Resource: "establishment", Message: family.notFoundMessage()}
	}
	return ests, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func intersect(ids, allowed []int64) []int64 {
	set := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
