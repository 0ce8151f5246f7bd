package service

import (
	"context"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/port"

	"go.uber.org/zap"
)

// TerminalResolver turns a transaction's point-of-sale id into a readable label.
// It never fails: anything unresolvable becomes domain.TerminalNotFound.
type TerminalResolver struct {
	lookup port.TerminalLookup
	logger *zap.Logger
}

// NewTerminalResolver creates a resolver. lookup may be nil to disable remote lookups.
func NewTerminalResolver(lookup port.TerminalLookup, logger *zap.Logger) *TerminalResolver {
	return &TerminalResolver{lookup: lookup, logger: logger}
}

// ResolveLabel returns the local terminal's label when the id is known locally,
// otherwise the serial reported by one remote lookup.
func (r *TerminalResolver) ResolveLabel(ctx context.Context, tx domain.ZoopTransaction, est *domain.Establishment, local []domain.Terminal) string {
	return r.session(est, local).label(ctx, tx)
}

func (r *TerminalResolver) remote(ctx context.Context, est *domain.Establishment, id string) (label string) {
	if r.lookup == nil {
		return domain.TerminalNotFound
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("terminal lookup panicked", zap.String("terminal_id", id), zap.Any("panic", rec))
			label = domain.TerminalNotFound
		}
	}()

	remote, err := r.lookup.GetTerminal(ctx, est, id)
	if err != nil || remote == nil || remote.SerialNumber == "" {
		r.logger.Debug("terminal not resolved",
			zap.Int64("establishment_id", est.ID),
			zap.String("terminal_id", id),
			zap.Error(err),
		)
		return domain.TerminalNotFound
	}
	return remote.SerialNumber
}

// terminalSession resolves labels for one establishment and memoizes remote
// lookups for as long as it lives. Not safe for concurrent use.
type terminalSession struct {
	resolver *TerminalResolver
	est      *domain.Establishment
	local    map[string]string
	remote   map[string]string
}

func (r *TerminalResolver) session(est *domain.Establishment, local []domain.Terminal) *terminalSession {
	idx := make(map[string]string, len(local))
	for _, t := range local {
		if t.Identifier == "" {
			continue
		}
		if _, seen := idx[t.Identifier]; !seen {
			idx[t.Identifier] = t.Label()
		}
	}
	return &terminalSession{resolver: r, est: est, local: idx, remote: make(map[string]string)}
}

func (s *terminalSession) label(ctx context.Context, tx domain.ZoopTransaction) string {
	id := tx.TerminalID()
	if id == "" {
		return domain.TerminalNotFound
	}
	if l, ok := s.local[id]; ok {
		return l
	}
	if l, ok := s.remote[id]; ok {
		return l
	}
	l := s.resolver.remote(ctx, s.est, id)
	s.remote[id] = l
	return l
}
