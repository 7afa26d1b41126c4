package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalix/vault/internal/auth"
	"github.com/signalix/vault/internal/crypt"
	"github.com/signalix/vault/internal/envelope"
	httphandler "github.com/signalix/vault/internal/http"
	"github.com/signalix/vault/internal/middleware"
	"github.com/signalix/vault/internal/repo"
	"github.com/signalix/vault/internal/session"
)

const (
	testPhone           = "+491234567890"
	testDefaultPassword = "test-default-password"
)

type serverConfig struct {
	users           repo.UserRepo
	data            repo.DataRepo
	dbConnected     func() bool
	otpInResponse   bool
	dataRequireAuth bool
	otpRequestLimit int
}

type option func(*serverConfig)

func withRepos(users repo.UserRepo, data repo.DataRepo, connected func() bool) option {
	return func(c *serverConfig) { c.users, c.data, c.dbConnected = users, data, connected }
}

func withoutOTPInResponse() option { return func(c *serverConfig) { c.otpInResponse = false } }
func withDataRequireAuth() option  { return func(c *serverConfig) { c.dataRequireAuth = true } }
func withOTPRequestLimit(n int) option {
	return func(c *serverConfig) { c.otpRequestLimit = n }
}

// testServer is the full router behind httptest.
type testServer struct {
	Server   *httptest.Server
	Sessions *session.MemoryStore
	JWT      *auth.JWTService
}

func newTestServer(t *testing.T, opts ...option) *testServer {
	t.Helper()
	cfg := serverConfig{
		users:           repo.NewMemoryUserRepo(),
		data:            repo.NewMemoryDataRepo(),
		otpInResponse:   true,
		otpRequestLimit: 1000,
	}
	for _, o := range opts {
		o(&cfg)
	}

	sessions, err := session.NewMemoryStore()
	require.NoError(t, err)
	jwtService := auth.NewJWTService("test-jwt-secret-at-least-32-characters-long", time.Hour)
	authService := auth.NewAuthService(auth.NewMemoryOTP("test-otp-salt", time.Minute), jwtService, cfg.users, sessions)

	requestLimiter := middleware.NewRateLimiter(time.Minute, cfg.otpRequestLimit)
	t.Cleanup(requestLimiter.Stop)

	router := httphandler.NewRouter(httphandler.Deps{
		Sessions: sessions,
		Dispatcher: envelope.NewDispatcher(sessions, envelope.Config{DefaultPassword: testDefaultPassword}),
		Auth:              authService,
		JWT:               jwtService,
		Users:             cfg.users,
		Data:              cfg.data,
		OTPRequestLimiter: requestLimiter,
		DBConnected:       cfg.dbConnected,
		CORSOrigins:       []string{"*"},
		OTPInResponse:     cfg.otpInResponse,
		DataRequireAuth:   cfg.dataRequireAuth,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, Sessions: sessions, JWT: jwtService}
}

// response is a decoded reply. Body holds the decrypted payload for encrypted replies.
type response struct {
	Status    int
	Encrypted bool
	Body      map[string]any
	Raw       string
}

func (r response) str(key string) string {
	s, _ := r.Body[key].(string)
	return s
}

// client speaks the wire protocol the way a mobile client would.
type client struct {
	t         *testing.T
	base      string
	http      *http.Client
	SessionID string
	secret    []byte
}

func (s *testServer) newClient(t *testing.T) *client {
	return &client{t: t, base: s.Server.URL, http: s.Server.Client()}
}

// keyExchange establishes a DH session and keeps its secret.
func (c *client) keyExchange() {
	c.t.Helper()
	priv, err := crypt.GenerateKeyPair()
	require.NoError(c.t, err)

	resp := c.plain(http.MethodPost, "/key-exchange", map[string]any{
		"clientPublicKey": crypt.EncodePublicKey(priv.PublicKey()),
	}, nil)
	require.Equal(c.t, http.StatusOK, resp.Status, resp.Raw)

	serverPub, err := crypt.ParsePublicKey([]byte(resp.str("serverPublicKey")))
	require.NoError(c.t, err)
	c.secret, err = crypt.DeriveSharedSecret(priv, serverPub)
	require.NoError(c.t, err)
	c.SessionID = resp.str("sessionId")
	require.NotEmpty(c.t, c.SessionID)
}

// session sends body encrypted with the session secret. A nil body sends only the header.
func (c *client) session(method, path string, body any) response {
	c.t.Helper()
	var payload any
	if body != nil {
		plain, err := json.Marshal(body)
		require.NoError(c.t, err)
		ct, err := crypt.Encrypt(plain, c.secret)
		require.NoError(c.t, err)
		payload = map[string]string{"encryptedData": ct}
	}
	resp := c.plain(method, path, payload, map[string]string{envelope.SessionHeader: c.SessionID})
	return c.open(resp, func(ct string) ([]byte, error) { return crypt.Decrypt(ct, c.secret) })
}

// password sends body in password mode. An empty password relies on the server default.
func (c *client) password(path string, body any, password string) response {
	c.t.Helper()
	key := password
	if key == "" {
		key = testDefaultPassword
	}
	plain, err := json.Marshal(body)
	require.NoError(c.t, err)
	ct, err := crypt.EncryptWithPassword(plain, key)
	require.NoError(c.t, err)

	payload := map[string]string{"encryptedData": ct}
	if password != "" {
		payload["password"] = password
	}
	resp := c.plain(http.MethodPost, path, payload, nil)
	return c.open(resp, func(ct string) ([]byte, error) { return crypt.DecryptWithPassword(ct, key) })
}

func (c *client) plain(method, path string, body any, header map[string]string) response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	httpResp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(httpResp.Body)
	require.NoError(c.t, err)

	resp := response{Status: httpResp.StatusCode, Raw: string(raw)}
	_ = json.Unmarshal(raw, &resp.Body)
	return resp
}

func (c *client) open(resp response, decrypt func(string) ([]byte, error)) response {
	c.t.Helper()
	if enc, _ := resp.Body["encrypted"].(bool); !enc {
		return resp
	}
	plain, err := decrypt(resp.str("data"))
	require.NoError(c.t, err, "encrypted response must open with the client key")
	resp.Encrypted = true
	resp.Body = nil
	require.NoError(c.t, json.Unmarshal(plain, &resp.Body))
	return resp
}

// registerUser creates phone with password "pw" through /register.
func registerUser(t *testing.T, c *client, phone string) {
	t.Helper()
	resp := c.password("/register", map[string]string{"phoneNumber": phone, "name": "Ana", "password": "pw"}, "")
	require.Equal(t, http.StatusCreated, resp.Status, resp.Raw)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
