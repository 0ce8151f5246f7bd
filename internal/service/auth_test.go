package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/cache"
	"github.com/meshfin/financeiro-api/internal/infra/observability"
	"github.com/meshfin/financeiro-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	users   *fakeUserStore
	tokens  *fakeTokenStore
	metrics *observability.Metrics
	svc     *service.AuthService
}

func newAuthFixture(t *testing.T, ttl time.Duration, users ...domain.User) *authFixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("segredo"), bcrypt.MinCost)
	require.NoError(t, err)
	for i := range users {
		users[i].PasswordHash = string(hash)
	}

	tokenCache := cache.New[*domain.User](time.Minute)
	t.Cleanup(tokenCache.Close)

	f := &authFixture{
		users:   &fakeUserStore{users: users},
		tokens:  newTokenStore(),
		metrics: observability.NewMetrics(),
	}
	ests := newEstStore(meshEst(1, "Alfa"), domain.Establishment{ID: 2, Name: "Bravo", Type: domain.ProviderSumcred, Region: 3}, useEst(3, "Charlie"))
	f.svc = service.NewAuthService(f.users, f.tokens, ests, tokenCache, f.metrics, "test-secret", ttl, zap.NewNop())
	return f
}

func TestLogin_VisibleUnits(t *testing.T) {
	tests := []struct {
		name  string
		units []int64
		want  []int64
	}{
		{"unrestricted sees all", nil, []int64{1, 2, 3}},
		{"empty list sees type 1", []int64{}, []int64{1}},
		{"explicit list", []int64{3, 2}, []int64{2, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t, time.Hour, domain.User{ID: 7, Name: "Op", CPF: "52998224725", Type: 1, Active: true, Units: tc.units})

			resp, err := f.svc.Login(context.Background(), &domain.LoginRequest{CPF: "529.982.247-25", Password: "segredo"})
			require.NoError(t, err)

			assert.Equal(t, int64(7), resp.ID)
			assert.NotEmpty(t, resp.Token)
			var got []int64
			for _, u := range resp.Units {
				got = append(got, u.ID)
			}
			assert.Equal(t, tc.want, got)
			assert.Len(t, f.tokens.tokens, 1)
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newAuthFixture(t, time.Hour,
		domain.User{ID: 1, CPF: "52998224725", Active: true},
		domain.User{ID: 2, CPF: "11144477735", Active: false},
	)

	tests := []struct {
		name string
		req  domain.LoginRequest
		msg  string
	}{
		{"unknown cpf", domain.LoginRequest{CPF: "39053344705", Password: "segredo"}, "Credenciais inválidas"},
		{"wrong password", domain.LoginRequest{CPF: "52998224725", Password: "errada"}, "Credenciais inválidas"},
		{"inactive", domain.LoginRequest{CPF: "11144477735", Password: "segredo"}, "Usuário inativo"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), &tc.req)
			var ue *domain.ErrUnauthorized
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tc.msg, ue.Error())
		})
	}

	_, err := f.svc.Login(context.Background(), &domain.LoginRequest{})
	var ve *domain.ErrValidation
	require.ErrorAs(t, err, &ve)
}

func TestValidateToken_CachesAfterFirstLookup(t *testing.T) {
	f := newAuthFixture(t, time.Hour, domain.User{ID: 7, CPF: "52998224725", Active: true})
	resp, err := f.svc.Login(context.Background(), &domain.LoginRequest{CPF: "52998224725", Password: "segredo"})
	require.NoError(t, err)

	u, err := f.svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	u, err = f.svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	assert.Equal(t, 1, f.tokens.gets)
	snap := f.metrics.GetAggregationSnapshot()
	assert.InDelta(t, 0.5, snap.TokenCacheHitRate, 0.0001)
}

func TestValidateToken_Rejections(t *testing.T) {
	f := newAuthFixture(t, time.Hour, domain.User{ID: 7, CPF: "52998224725", Active: true})
	resp, err := f.svc.Login(context.Background(), &domain.LoginRequest{CPF: "52998224725", Password: "segredo"})
	require.NoError(t, err)

	var ue *domain.ErrUnauthorized

	_, err = f.svc.ValidateToken(context.Background(), "not-a-jwt")
	require.ErrorAs(t, err, &ue)

	other := service.NewAuthService(f.users, f.tokens, newEstStore(), cache.New[*domain.User](time.Minute), observability.NewMetrics(), "other-secret", time.Hour, zap.NewNop())
	_, err = other.ValidateToken(context.Background(), resp.Token)
	require.ErrorAs(t, err, &ue, "signature from another secret")

	require.NoError(t, f.svc.Logout(context.Background(), resp.Token))
	_, err = f.svc.ValidateToken(context.Background(), resp.Token)
	require.ErrorAs(t, err, &ue, "revoked token")
}

func TestValidateToken_ExpiredRowIsRejected(t *testing.T) {
	f := newAuthFixture(t, time.Hour, domain.User{ID: 7, CPF: "52998224725", Active: true})
	resp, err := f.svc.Login(context.Background(), &domain.LoginRequest{CPF: "52998224725", Password: "segredo"})
	require.NoError(t, err)

	for id, tok := range f.tokens.tokens {
		tok.ExpiresAt = time.Now().Add(-time.Minute)
		f.tokens.tokens[id] = tok
	}

	_, err = f.svc.ValidateToken(context.Background(), resp.Token)
	var ue *domain.ErrUnauthorized
	require.ErrorAs(t, err, &ue)

	n, err := f.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
