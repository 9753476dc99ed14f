package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shanky048/WisePal/internal/api"
	"github.com/Shanky048/WisePal/internal/session"
)

type mapStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *mapStorage) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStorage) Put(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mapStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type recordingNavigator struct {
	views []View
}

func (n *recordingNavigator) Navigate(v View) {
	n.views = append(n.views, v)
}

func newSession() *session.Store {
	return session.NewStore(&mapStorage{values: map[string]string{}}, nil)
}

func loginServer(t *testing.T, status int, body string, calls *atomic.Int32) *api.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return api.NewClient(server.URL)
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	store := newSession()
	gate := NewGate(store)

	assert.Equal(t, Redirect, gate.Check())

	require.NoError(t, store.SetToken(ctx, "abc"))
	assert.Equal(t, Proceed, gate.Check())

	require.NoError(t, store.ClearToken(ctx))
	assert.Equal(t, Redirect, gate.Check())

	assert.Equal(t, Proceed, gate.Evaluate(session.Change{Token: "abc", Authenticated: true, Reason: session.ReasonLogin}))
	assert.Equal(t, Redirect, gate.Evaluate(session.Change{Reason: session.ReasonExpired}))
}

func TestRouter_SameViewIsNoop(t *testing.T) {
	var switches []View
	router := NewRouter(ViewLogin, func(v View) { switches = append(switches, v) })

	router.Navigate(ViewLogin)
	router.Navigate(ViewChat)
	router.Navigate(ViewChat)
	router.Navigate(ViewLogin)

	assert.Equal(t, []View{ViewChat, ViewLogin}, switches)
	assert.Equal(t, ViewLogin, router.Current())
	assert.Equal(t, "login", router.Current().String())
}

func TestLogin_Success(t *testing.T) {
	store := newSession()
	nav := &recordingNavigator{}
	client := loginServer(t, http.StatusOK, `{"access_token":"abc","token_type":"bearer"}`, nil)
	c := NewLoginController(client, store, nav, nil)
	c.SetNotice(MsgSessionExpired)

	require.NoError(t, c.Submit(context.Background(), "a@b.com", "secret"))

	token, ok := store.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.Equal(t, []View{ViewChat}, nav.views, "navigates exactly once")
	assert.Empty(t, c.Err())
	assert.Empty(t, c.Notice())
	assert.False(t, c.Submitting())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"detail shown verbatim", http.StatusUnauthorized, `{"detail":"Invalid credentials"}`, "Invalid credentials"},
		{"no detail", http.StatusBadRequest, `{}`, MsgLoginFailed},
		{"unparseable body", http.StatusInternalServerError, `oops`, MsgLoginFailed},
		{"structured detail", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"}]}`, MsgLoginFailed},
		{"success without token", http.StatusOK, `{"token_type":"bearer"}`, MsgLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSession()
			nav := &recordingNavigator{}
			c := NewLoginController(loginServer(t, tt.status, tt.body, nil), store, nav, nil)

			err := c.Submit(context.Background(), "a@b.com", "wrong")
			assert.Error(t, err)
			assert.Equal(t, tt.wantMsg, c.Err())
			assert.Empty(t, nav.views, "must not navigate")

			_, ok := store.Token()
			assert.False(t, ok, "session untouched")
			assert.False(t, c.Submitting())
		})
	}
}

func TestLogin_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	nav := &recordingNavigator{}
	c := NewLoginController(api.NewClient(baseURL), newSession(), nav, nil)

	err := c.Submit(context.Background(), "a@b.com", "pw")
	var transportErr *api.TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.Equal(t, MsgUnreachable, c.Err())
	assert.Empty(t, nav.views)
}

func TestLogin_MissingCredentials(t *testing.T) {
	var calls atomic.Int32
	c := NewLoginController(loginServer(t, http.StatusOK, `{"access_token":"abc"}`, &calls), newSession(), &recordingNavigator{}, nil)

	for _, creds := range [][2]string{{"", "pw"}, {"   ", "pw"}, {"a@b.com", ""}} {
		err := c.Submit(context.Background(), creds[0], creds[1])
		assert.ErrorIs(t, err, ErrMissingCredentials)
	}
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, c.Submitting())
}

func TestLogin_DuplicateSubmissionBlocked(t *testing.T) {
	var calls atomic.Int32
	nav := &recordingNavigator{}
	c := NewLoginController(loginServer(t, http.StatusOK, `{"access_token":"abc"}`, &calls), newSession(), nav, nil)

	require.NoError(t, c.TryBegin("a@b.com", "pw"))
	assert.True(t, c.Submitting())

	err := c.Submit(context.Background(), "a@b.com", "pw")
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.Equal(t, int32(0), calls.Load(), "second submission issues no request")

	require.NoError(t, c.Authenticate(context.Background(), "a@b.com", "pw"))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []View{ViewChat}, nav.views)
}

func TestLogin_FailureKeepsNotice(t *testing.T) {
	c := NewLoginController(loginServer(t, http.StatusUnauthorized, `{"detail":"Invalid credentials"}`, nil), newSession(), &recordingNavigator{}, nil)
	c.SetNotice(MsgSessionExpired)

	assert.Error(t, c.Submit(context.Background(), "a@b.com", "pw"))
	assert.Equal(t, MsgSessionExpired, c.Notice())
	assert.Equal(t, "Invalid credentials", c.Err())
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"created", http.StatusCreated, `{"id":"1","email":"a@b.com"}`, ""},
		{"already exists", http.StatusBadRequest, `{"detail":"REGISTER_USER_ALREADY_EXISTS"}`, "REGISTER_USER_ALREADY_EXISTS"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"value is not a valid email address"}]}`, MsgRegisterFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := loginServer(t, tt.status, tt.body, nil)

			email, err := Register(context.Background(), client, "a@b.com", "pw")
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@b.com", email)
				return
			}
			var regErr *RegisterError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, tt.wantMsg, regErr.Error())
			var statusErr *api.StatusError
			assert.ErrorAs(t, err, &statusErr)
		})
	}
}

func TestRegister_MissingCredentials(t *testing.T) {
	var calls atomic.Int32
	client := loginServer(t, http.StatusCreated, `{}`, &calls)

	_, err := Register(context.Background(), client, " ", "pw")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, calls.Load())
}
