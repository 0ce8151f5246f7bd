package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
)

// --- Stores ---

type fakeEstStore struct {
	mu     sync.Mutex
	ests   []domain.Establishment
	nextID int64
	err    error
}

func newEstStore(ests ...domain.Establishment) *fakeEstStore {
	s := &fakeEstStore{nextID: 100}
	s.ests = append(s.ests, ests...)
	return s
}

func (s *fakeEstStore) ListEstablishments(_ context.Context, f domain.EstablishmentFilter) ([]domain.Establishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	ids := map[int64]bool{}
	for _, id := range f.IDs {
		ids[id] = true
	}
	types := map[domain.ProviderType]bool{}
	for _, t := range f.Types {
		types[t] = true
	}

	out := []domain.Establishment{}
	for _, e := range s.ests {
		if len(ids) > 0 && !ids[e.ID] {
			continue
		}
		if len(types) > 0 && !types[e.Type] {
			continue
		}
		if f.ExcludeType != 0 && e.Type == f.ExcludeType {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeEstStore) GetEstablishment(_ context.Context, id int64) (*domain.Establishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.ests {
		if e.ID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "establishment"}
}

func (s *fakeEstStore) CreateEstablishment(_ context.Context, est *domain.Establishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	est.ID = s.nextID
	s.ests = append(s.ests, *est)
	return nil
}

func (s *fakeEstStore) UpdateEstablishment(_ context.Context, est *domain.Establishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ests {
		if s.ests[i].ID == est.ID {
			s.ests[i] = *est
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "establishment"}
}

func (s *fakeEstStore) DeleteEstablishment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ests {
		if s.ests[i].ID == id {
			s.ests = append(s.ests[:i], s.ests[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "establishment"}
}

func (s *fakeEstStore) TaxIDTaken(_ context.Context, taxID string, typ domain.ProviderType, identifier string, exceptID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.ests {
		if e.ID != exceptID && e.TaxID == taxID && e.Type == typ && e.Identifier == identifier {
			return true, nil
		}
	}
	return false, nil
}

type fakeTermStore struct {
	mu        sync.Mutex
	terms     []domain.Terminal
	listCalls int
	nextID    int64
}

func (s *fakeTermStore) ListTerminals(context.Context) ([]domain.Terminal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return append([]domain.Terminal(nil), s.terms...), nil
}

func (s *fakeTermStore) ListTerminalsByEstablishment(_ context.Context, estID int64) ([]domain.Terminal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Terminal{}
	for _, t := range s.terms {
		if t.EstablishmentID == estID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTermStore) GetTerminal(_ context.Context, id int64) (*domain.Terminal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.terms {
		if t.ID == id {
			cp := t
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "terminal"}
}

func (s *fakeTermStore) SerialTaken(_ context.Context, serial string, exceptID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.terms {
		if t.Serial == serial && t.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeTermStore) CreateTerminal(_ context.Context, t *domain.Terminal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	s.terms = append(s.terms, *t)
	return nil
}

func (s *fakeTermStore) UpdateTerminal(_ context.Context, t *domain.Terminal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.terms {
		if s.terms[i].ID == t.ID {
			s.terms[i] = *t
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "terminal"}
}

func (s *fakeTermStore) DeleteTerminal(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.terms {
		if s.terms[i].ID == id {
			s.terms = append(s.terms[:i], s.terms[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "terminal"}
}

type fakeUserStore struct {
	mu     sync.Mutex
	users  []domain.User
	nextID int64
}

func (s *fakeUserStore) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.User(nil), s.users...), nil
}

func (s *fakeUserStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user"}
}

func (s *fakeUserStore) GetUserByCPF(_ context.Context, cpf string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.CPF == cpf {
			cp := u
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user"}
}

func (s *fakeUserStore) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	s.users = append(s.users, *u)
	return nil
}

func (s *fakeUserStore) UpdateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == u.ID {
			s.users[i] = *u
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "user"}
}

func (s *fakeUserStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "user"}
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.AccessToken
	gets   int
}

func newTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]domain.AccessToken{}}
}

func (s *fakeTokenStore) StoreToken(_ context.Context, tok *domain.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tok.ID] = *tok
	return nil
}

func (s *fakeTokenStore) GetToken(_ context.Context, id string) (*domain.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	tok, ok := s.tokens[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "access token"}
	}
	return &tok, nil
}

func (s *fakeTokenStore) DeleteToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
	return nil
}

func (s *fakeTokenStore) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, tok := range s.tokens {
		if !tok.ExpiresAt.After(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// --- Gateways ---

type fakeZoop struct {
	mu        sync.Mutex
	txs       map[int64][]domain.ZoopTransaction
	balances  map[int64]domain.Money
	errs      map[int64]error
	panics    map[int64]bool
	txCalls   int
	balCalls  int
	lastStart time.Time
	lastEnd   time.Time
}

func (z *fakeZoop) FetchTransactions(_ context.Context, est *domain.Establishment, start, end time.Time) ([]domain.ZoopTransaction, error) {
	z.mu.Lock()
	z.txCalls++
	z.lastStart, z.lastEnd = start, end
	panics := z.panics[est.ID]
	err := z.errs[est.ID]
	txs := append([]domain.ZoopTransaction(nil), z.txs[est.ID]...)
	z.mu.Unlock()

	if panics {
		panic("boom")
	}
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (z *fakeZoop) FetchBalance(_ context.Context, est *domain.Establishment) (domain.Money, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.balCalls++
	return z.balances[est.ID], nil
}

func (z *fakeZoop) calls() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.txCalls + z.balCalls
}

type fakeLookup struct {
	mu      sync.Mutex
	serials map[string]string
	calls   map[string]int
}

func (l *fakeLookup) GetTerminal(_ context.Context, _ *domain.Establishment, id string) (*domain.RemoteTerminal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[id]++
	serial, ok := l.serials[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "terminal", ID: id}
	}
	return &domain.RemoteTerminal{ID: id, SerialNumber: serial}, nil
}

type fakeSearcher struct {
	remote *domain.RemoteTerminal
	err    error
	key    string
}

func (f *fakeSearcher) SearchTerminal(_ context.Context, est *domain.Establishment, _ string) (*domain.RemoteTerminal, error) {
	f.key = est.Key
	return f.remote, f.err
}

type fakeUse struct {
	mu          sync.Mutex
	receivables map[int64][]domain.UseReceivable
	balances    map[int64]domain.Money
	errs        map[int64]error
	payouts     []int64
	calls       int
}

func (u *fakeUse) FetchReceivables(_ context.Context, est *domain.Establishment, _, _ string) ([]domain.UseReceivable, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if err := u.errs[est.ID]; err != nil {
		return nil, err
	}
	return u.receivables[est.ID], nil
}

func (u *fakeUse) FetchBalance(_ context.Context, est *domain.Establishment) (domain.Money, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	return u.balances[est.ID], nil
}

func (u *fakeUse) RequestPayout(_ context.Context, est *domain.Establishment) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.payouts = append(u.payouts, est.ID)
	return nil
}

var errProvider = errors.New("provider unavailable")

func money(s string) domain.Money {
	return domain.MoneyFromString(s)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
