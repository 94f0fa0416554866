package auth

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lcerrors "livecheck/internal/errors"
	"livecheck/internal/slogutil"
	"livecheck/internal/storage"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return http.StatusText(e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

type memCreds struct {
	creds Credentials
	saved []TokenPair
}

func (m *memCreds) Credentials() (Credentials, error) { return m.creds, nil }

func (m *memCreds) SaveTokens(p TokenPair) error {
	m.saved = append(m.saved, p)
	m.creds.AccessToken = p.AccessToken
	m.creds.RefreshToken = p.RefreshToken
	return nil
}

type fakeRefresher struct {
	calls int
	pair  TokenPair
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (TokenPair, error) {
	f.calls++
	return f.pair, f.err
}

func tokenCreds() *memCreds {
	return &memCreds{creds: Credentials{Mode: ModeToken, AccessToken: "old", RefreshToken: "r1"}}
}

func TestAuthHeader(t *testing.T) {
	logger := slogutil.NewDiscardLogger()

	name, value, err := NewClient(tokenCreds(), nil, logger).AuthHeader()
	require.NoError(t, err)
	assert.Equal(t, "Authorization", name)
	assert.Equal(t, "Bearer old", value)

	keyCreds := &memCreds{creds: Credentials{Mode: ModeAPIKey, APIKey: "k-123"}}
	_, value, err = NewClient(keyCreds, nil, logger).AuthHeader()
	require.NoError(t, err)
	assert.Equal(t, "ApiKey k-123", value)

	for _, creds := range []Credentials{
		{},
		{Mode: ModeToken},
		{Mode: ModeAPIKey, AccessToken: "wrong-mode"},
	} {
		_, _, err := NewClient(&memCreds{creds: creds}, nil, logger).AuthHeader()
		assert.True(t, lcerrors.Is(err, lcerrors.CredentialsMissing), "creds %+v: %v", creds, err)
	}
}

func TestDo_RetriesOnceAfterRefresh(t *testing.T) {
	creds := tokenCreds()
	refresher := &fakeRefresher{pair: TokenPair{AccessToken: "new", RefreshToken: "r2"}}
	client := NewClient(creds, refresher, slogutil.NewDiscardLogger())

	var headers []string
	err := client.Do(context.Background(), func(_ context.Context, authorization string) error {
		headers = append(headers, authorization)
		if len(headers) == 1 {
			return &statusErr{code: http.StatusUnauthorized}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer old", "Bearer new"}, headers)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, []TokenPair{{AccessToken: "new", RefreshToken: "r2"}}, creds.saved)
}

func TestDo_SecondUnauthorizedIsNotRetried(t *testing.T) {
	refresher := &fakeRefresher{pair: TokenPair{AccessToken: "new", RefreshToken: "r2"}}
	client := NewClient(tokenCreds(), refresher, slogutil.NewDiscardLogger())

	calls := 0
	err := client.Do(context.Background(), func(context.Context, string) error {
		calls++
		return &statusErr{code: http.StatusUnauthorized}
	})

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.True(t, lcerrors.Is(err, lcerrors.Unauthorized), err)
	assert.Contains(t, lcerrors.UserMessage(err), "Your session has expired.")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, refresher.calls)
}

func TestDo_UsesTokenRotatedByAnotherCall(t *testing.T) {
	creds := tokenCreds()
	refresher := &fakeRefresher{pair: TokenPair{AccessToken: "unused", RefreshToken: "r3"}}
	client := NewClient(creds, refresher, slogutil.NewDiscardLogger())

	var headers []string
	err := client.Do(context.Background(), func(_ context.Context, authorization string) error {
		headers = append(headers, authorization)
		if len(headers) == 1 {
			// a concurrent call finished its refresh while this one was in flight
			creds.creds.AccessToken = "rotated"
			creds.creds.RefreshToken = "r2"
			return &statusErr{code: http.StatusUnauthorized}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer old", "Bearer rotated"}, headers)
	assert.Zero(t, refresher.calls)
	assert.Empty(t, creds.saved)
}

func TestDo_RotatedTokenRejectedIsUnauthorized(t *testing.T) {
	creds := tokenCreds()
	refresher := &fakeRefresher{}
	client := NewClient(creds, refresher, slogutil.NewDiscardLogger())

	calls := 0
	err := client.Do(context.Background(), func(context.Context, string) error {
		calls++
		creds.creds.AccessToken = "rotated"
		return &statusErr{code: http.StatusUnauthorized}
	})

	assert.True(t, lcerrors.Is(err, lcerrors.Unauthorized), err)
	assert.Equal(t, 2, calls)
	assert.Zero(t, refresher.calls)
}

func TestDo_OtherStatusPropagates(t *testing.T) {
	for _, code := range []int{http.StatusForbidden, http.StatusInternalServerError, http.StatusBadRequest} {
		refresher := &fakeRefresher{}
		client := NewClient(tokenCreds(), refresher, slogutil.NewDiscardLogger())
		want := &statusErr{code: code}

		calls := 0
		err := client.Do(context.Background(), func(context.Context, string) error {
			calls++
			return want
		})

		assert.Same(t, want, err, "status %d", code)
		assert.Equal(t, 1, calls)
		assert.Zero(t, refresher.calls)
	}
}

func TestDo_NoRefreshToken(t *testing.T) {
	creds := &memCreds{creds: Credentials{Mode: ModeToken, AccessToken: "old"}}
	refresher := &fakeRefresher{}
	client := NewClient(creds, refresher, slogutil.NewDiscardLogger())
	want := &statusErr{code: http.StatusUnauthorized}

	err := client.Do(context.Background(), func(context.Context, string) error { return want })

	assert.Same(t, want, err)
	assert.Zero(t, refresher.calls)
}

func TestDo_APIKeyModeDoesNotRefresh(t *testing.T) {
	creds := &memCreds{creds: Credentials{Mode: ModeAPIKey, APIKey: "k", RefreshToken: "r1"}}
	refresher := &fakeRefresher{}
	client := NewClient(creds, refresher, slogutil.NewDiscardLogger())

	err := client.Do(context.Background(), func(context.Context, string) error {
		return &statusErr{code: http.StatusUnauthorized}
	})

	assert.True(t, IsUnauthorized(err))
	assert.Zero(t, refresher.calls)
}

func TestDo_RefreshFailureReturnsOriginalError(t *testing.T) {
	creds := tokenCreds()
	refresher := &fakeRefresher{err: errors.New("refresh endpoint down")}
	client := NewClient(creds, refresher, slogutil.NewDiscardLogger())
	want := &statusErr{code: http.StatusUnauthorized}

	calls := 0
	err := client.Do(context.Background(), func(context.Context, string) error {
		calls++
		return want
	})

	assert.Same(t, want, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, creds.saved)
}

func TestHandleUnauthorized_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	refresher := &fakeRefresher{pair: TokenPair{AccessToken: "new"}}
	client := NewClient(tokenCreds(), refresher, slogutil.NewDiscardLogger())

	var persisted TokenPair
	var retried TokenPair
	err := client.HandleUnauthorized(context.Background(),
		&statusErr{code: http.StatusUnauthorized},
		func(_ context.Context, p TokenPair) error { retried = p; return nil },
		"r1",
		func(p TokenPair) error { persisted = p; return nil },
	)

	require.NoError(t, err)
	assert.Equal(t, TokenPair{AccessToken: "new", RefreshToken: "r1"}, persisted)
	assert.Equal(t, persisted, retried)
}

func TestStatusOf_Wrapped(t *testing.T) {
	err := lcerrors.New(lcerrors.RemoteFailure, "analyze", &statusErr{code: http.StatusUnauthorized})
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Zero(t, StatusOf(errors.New("plain")))
}

func TestSealer(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "credentials.key")

	s, err := NewSealer(keyPath)
	require.NoError(t, err)

	sealed, err := s.Seal("secret-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret-token")

	reopened, err := NewSealer(keyPath)
	require.NoError(t, err)
	plain, err := reopened.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", plain)

	other, err := NewSealer(filepath.Join(t.TempDir(), "other.key"))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrSealedValue)

	_, err = s.Open("not base64!")
	assert.ErrorIs(t, err, ErrSealedValue)
}

func TestSealer_ConcurrentCreateAgreesOnKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "credentials.key")

	const n = 8
	sealers := make([]*Sealer, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := NewSealer(keyPath)
			assert.NoError(t, err)
			sealers[i] = s
		}(i)
	}
	wg.Wait()

	sealed, err := sealers[0].Seal("v")
	require.NoError(t, err)
	for _, s := range sealers[1:] {
		require.NotNil(t, s)
		plain, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "v", plain)
	}
}

func TestStoreCredentials(t *testing.T) {
	store := storage.NewMemoryStore(storage.Options{})
	sealer, err := NewSealer(filepath.Join(t.TempDir(), "credentials.key"))
	require.NoError(t, err)
	creds := NewStoreCredentials(store, sealer, slogutil.NewDiscardLogger())

	empty, err := creds.Credentials()
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, empty)

	require.NoError(t, creds.SaveTokens(TokenPair{AccessToken: "a1", RefreshToken: "r1"}))

	var raw string
	ok, err := store.GetUserData(KeyAccessToken, &raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, "a1", raw, "token must be sealed at rest")

	got, err := creds.Credentials()
	require.NoError(t, err)
	assert.Equal(t, Credentials{Mode: ModeToken, AccessToken: "a1", RefreshToken: "r1"}, got)

	require.NoError(t, creds.SaveAPIKey("key-9"))
	got, err = creds.Credentials()
	require.NoError(t, err)
	assert.Equal(t, ModeAPIKey, got.Mode)
	assert.Equal(t, "key-9", got.APIKey)

	// a value sealed with another key reads as absent
	require.NoError(t, store.SetUserData(KeyAPIKey, "garbage"))
	got, err = creds.Credentials()
	require.NoError(t, err)
	assert.Empty(t, got.APIKey)

	require.NoError(t, creds.Clear())
	got, err = creds.Credentials()
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, got)
}
