package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/server/captcha"
	"github.com/dmitrijs2005/yggkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/profiles"
	"github.com/dmitrijs2005/yggkeeper/internal/server/services"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
	"github.com/dmitrijs2005/yggkeeper/internal/server/upstream"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

var (
	steve = &models.Character{UUID: uuid.MustParse("11111111-2222-3333-4444-555555555555"), Name: "Steve", OwnerID: 1}
	alex  = &models.Character{UUID: uuid.MustParse("66666666-7777-8888-9999-aaaaaaaaaaaa"), Name: "Alex", OwnerID: 1}
	user  = &models.User{ID: 1, UUID: uuid.MustParse("abcdefab-cdef-abcd-efab-cdefabcdefab"), Characters: []*models.Character{steve, alex}}
)

type fakeAuth struct {
	err         error
	gotSelected *services.ProfileRef
	invalidated string
}

func (f *fakeAuth) token(bound *models.Character) *tokens.Token {
	return &tokens.Token{ID: 1, AccessToken: "access", ClientToken: "client", User: user, BoundCharacter: bound}
}

func (f *fakeAuth) Authenticate(_ context.Context, username, password, clientToken string) (*tokens.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.token(nil), nil
}

func (f *fakeAuth) Refresh(_ context.Context, accessToken, clientToken string, selected *services.ProfileRef) (*tokens.Token, error) {
	f.gotSelected = selected
	if f.err != nil {
		return nil, f.err
	}
	return f.token(steve), nil
}

func (f *fakeAuth) Validate(_ context.Context, accessToken, clientToken string) error { return f.err }

func (f *fakeAuth) Invalidate(_ context.Context, accessToken string) { f.invalidated = accessToken }

func (f *fakeAuth) Signout(_ context.Context, username, password string) error { return f.err }

type fakeSessions struct {
	joinErr   error
	joinIP    string
	hasJoined *profiles.Profile
	hasErr    error
	forward   *upstream.Response
	fwdErr    error
}

func (f *fakeSessions) Join(_ context.Context, accessToken, selectedProfile, serverID, ip string) error {
	f.joinIP = ip
	return f.joinErr
}

func (f *fakeSessions) HasJoined(context.Context, string, string, string) (*profiles.Profile, error) {
	return f.hasJoined, f.hasErr
}

func (f *fakeSessions) Forward(context.Context, url.Values) (*upstream.Response, error) {
	return f.forward, f.fwdErr
}

type fakeTextures struct {
	calls    int
	err      error
	gotToken string
	gotModel string
	gotBody  []byte
	blobs    map[string][]byte
}

func (f *fakeTextures) Upload(_ context.Context, accessToken, characterID, slot string, r io.Reader, model string) (*models.Texture, error) {
	f.calls++
	f.gotToken, f.gotModel = accessToken, model
	f.gotBody, _ = io.ReadAll(r)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Texture{Hash: strings.Repeat("a", 64)}, nil
}

func (f *fakeTextures) Delete(_ context.Context, accessToken, characterID, slot string) error {
	f.calls++
	f.gotToken = accessToken
	return f.err
}

func (f *fakeTextures) Load(_ context.Context, hash string) ([]byte, bool, error) {
	data, ok := f.blobs[hash]
	return data, ok, f.err
}

type fakeProfiles struct {
	lookup    *profiles.Profile
	err       error
	gotSigned bool
	gotNames  []string
}

func (f *fakeProfiles) Lookup(_ context.Context, id string, signed bool) (*profiles.Profile, error) {
	f.gotSigned = signed
	return f.lookup, f.err
}

func (f *fakeProfiles) Query(_ context.Context, names []string) ([]*profiles.Profile, error) {
	f.gotNames = names
	return []*profiles.Profile{profiles.Simple(steve)}, f.err
}

func (f *fakeProfiles) Status(context.Context) (*services.Status, error) {
	return &services.Status{UserCount: 2, TokenCount: 3, PendingJoinCount: 1}, f.err
}

type fakeVerifier struct{ err error }

func (f *fakeVerifier) SendCode(context.Context, string) error { return f.err }

type fakeStarlight struct {
	challenge *captcha.Challenge
	err       error
	gotLogin  []string
	gotDegree int
}

func (f *fakeStarlight) VerifyImage(context.Context) (*captcha.Challenge, error) {
	return f.challenge, f.err
}

func (f *fakeStarlight) Login(_ context.Context, email, password, clientID string, degree int) error {
	f.gotLogin = []string{email, password, clientID}
	f.gotDegree = degree
	return f.err
}

type fixture struct {
	auth      *fakeAuth
	sessions  *fakeSessions
	textures  *fakeTextures
	profiles  *fakeProfiles
	verifier  *fakeVerifier
	starlight *fakeStarlight
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:     &fakeAuth{},
		sessions: &fakeSessions{},
		textures: &fakeTextures{blobs: map[string][]byte{}},
		profiles: &fakeProfiles{},
		verifier: &fakeVerifier{},
	}
	f.starlight = &fakeStarlight{challenge: &captcha.Challenge{
		ClientID: "c1", OriginWidth: 4, OriginHeight: 3, Width: 4, Height: 3, JPEG: []byte("jpg"),
	}}
	f.router = NewRouter(Deps{
		Auth:         f.auth,
		Sessions:     f.sessions,
		Textures:     f.textures,
		Profiles:     f.profiles,
		Verification: f.verifier,
		Starlight:    f.starlight,
		Meta: Meta{
			ServerName:            "Test",
			ImplementationName:    "yggkeeper",
			ImplementationVersion: "dev",
			NonEmailLogin:         true,
			SkinDomains:           []string{"localhost"},
			PublicKeyPEM:          "-----BEGIN PUBLIC KEY-----",
		},
		Metrics: metrics.New(func() float64 { return 0 }),
	})
	return f
}

func (f *fixture) do(method, target string, body any, header ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

// --- tests ---

func TestAuthenticate_Response(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/authserver/authenticate",
		map[string]any{"username": "a@b.c", "password": "pw", "requestUser": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.JSONEq(t, `{
		"accessToken": "access",
		"clientToken": "client",
		"availableProfiles": [
			{"id": "11111111222233334444555555555555", "name": "Steve"},
			{"id": "66666666777788889999aaaaaaaaaaaa", "name": "Alex"}
		],
		"user": {"id": "abcdefabcdefabcdefabcdefabcdefab", "properties": []}
	}`, rec.Body.String())
}

func TestAuthenticate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		err     error
		status  int
		code    string
		message string
	}{
		{"bad credentials", map[string]any{"username": "a", "password": "b"}, common.ErrInvalidCredentials,
			http.StatusForbidden, "ForbiddenOperationException", "Invalid credentials. Invalid username or password."},
		{"rate limited", map[string]any{"username": "a", "password": "b"},
			fmt.Errorf("%w: %w", common.ErrInvalidCredentials, common.ErrRateLimited),
			http.StatusForbidden, "ForbiddenOperationException", "Invalid credentials. Invalid username or password."},
		{"missing password", map[string]any{"username": "a"}, nil,
			http.StatusBadRequest, "IllegalArgumentException", "Invalid argument."},
		{"malformed json", "{", nil,
			http.StatusBadRequest, "IllegalArgumentException", "Invalid argument."},
		{"internal", map[string]any{"username": "a", "password": "b"}, errors.New("pq: connection refused"),
			http.StatusInternalServerError, "Internal Server Error", "500 Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.auth.err = tt.err

			rec := f.do(http.MethodPost, "/authserver/authenticate", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			m := decodeMap(t, rec)
			assert.Equal(t, tt.code, m["error"])
			assert.Equal(t, tt.message, m["errorMessage"])
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/authserver/refresh", map[string]any{
		"accessToken":     "access",
		"selectedProfile": map[string]string{"id": "11111111222233334444555555555555", "name": "Steve"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"accessToken": "access",
		"clientToken": "client",
		"selectedProfile": {"id": "11111111222233334444555555555555", "name": "Steve"}
	}`, rec.Body.String())
	assert.Equal(t, &services.ProfileRef{ID: "11111111222233334444555555555555", Name: "Steve"}, f.auth.gotSelected)

	// incomplete selected profile
	rec = f.do(http.MethodPost, "/authserver/refresh", map[string]any{
		"accessToken":     "access",
		"selectedProfile": map[string]string{"id": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.auth.err = common.ErrTokenAlreadyAssigned
	rec = f.do(http.MethodPost, "/authserver/refresh", map[string]any{"accessToken": "access"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Access token already has a profile assigned.", decodeMap(t, rec)["errorMessage"])
}

func TestValidateInvalidateSignout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/authserver/validate", map[string]any{"accessToken": "a"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodPost, "/authserver/invalidate", map[string]any{"accessToken": "a", "clientToken": "ignored"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "a", f.auth.invalidated)

	rec = f.do(http.MethodPost, "/authserver/signout", map[string]any{"username": "u", "password": "p"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	f.auth.err = common.ErrInvalidToken
	rec = f.do(http.MethodPost, "/authserver/validate", map[string]any{"accessToken": "a"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid token.", decodeMap(t, rec)["errorMessage"])
}

func TestJoin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/sessionserver/session/minecraft/join",
		map[string]any{"accessToken": "a", "selectedProfile": "p", "serverId": "s"},
		"X-Real-IP", "203.0.113.7")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "203.0.113.7", f.sessions.joinIP)

	f.sessions.joinErr = common.ErrInvalidProfile
	rec = f.do(http.MethodPost, "/sessionserver/session/minecraft/join",
		map[string]any{"accessToken": "a", "selectedProfile": "p", "serverId": "s"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid profile.", decodeMap(t, rec)["errorMessage"])
}

func TestHasJoined(t *testing.T) {
	const path = "/sessionserver/session/minecraft/hasJoined?username=Steve&serverId=s"

	t.Run("local", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.hasJoined = &profiles.Profile{ID: "id", Name: "Steve"}
		rec := f.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":"id","name":"Steve"}`, rec.Body.String())
	})

	t.Run("upstream", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.hasErr = common.ErrorNotFound
		f.sessions.forward = &upstream.Response{Status: http.StatusOK, ContentType: "application/json", Body: []byte(`{"id":"up"}`)}
		rec := f.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, `{"id":"up"}`, rec.Body.String())
	})

	t.Run("upstream disabled", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.hasErr = common.ErrorNotFound
		f.sessions.fwdErr = upstream.ErrDisabled
		rec := f.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing params", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, "/sessionserver/session/minecraft/hasJoined?username=Steve", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	f.profiles.lookup = &profiles.Profile{ID: "11111111222233334444555555555555", Name: "Steve"}

	rec := f.do(http.MethodGet, "/sessionserver/session/minecraft/profile/11111111222233334444555555555555?unsigned=false", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.profiles.gotSigned)

	rec = f.do(http.MethodGet, "/sessionserver/session/minecraft/profile/11111111222233334444555555555555", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.profiles.gotSigned)

	f.profiles.err = common.ErrorNotFound
	rec = f.do(http.MethodGet, "/sessionserver/session/minecraft/profile/11111111222233334444555555555555", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/sessionserver/session/minecraft/profile/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryProfiles(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/profiles/minecraft", []string{"Steve", "Nobody"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"11111111222233334444555555555555","name":"Steve"}]`, rec.Body.String())
	assert.Equal(t, []string{"Steve", "Nobody"}, f.profiles.gotNames)

	rec = f.do(http.MethodPost, "/api/profiles/minecraft", `{"not":"a list"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "skin.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadTexture(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, map[string]string{"model": "slim"}, []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPut, "/api/user/profile/11111111222233334444555555555555/skin", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer tok123")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "tok123", f.textures.gotToken)
	assert.Equal(t, "slim", f.textures.gotModel)
	assert.Equal(t, []byte("png-bytes"), f.textures.gotBody)
}

func TestUploadTexture_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		body, ct := multipartBody(t, map[string]string{"model": "slim"}, nil)
		req := httptest.NewRequest(http.MethodPut, "/api/user/profile/x/skin", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, f.textures.calls)
	})

	tests := []struct {
		err    error
		status int
	}{
		{common.ErrorUnauthorized, http.StatusUnauthorized},
		{common.ErrAccessDenied, http.StatusForbidden},
		{common.ErrMalformedImage, http.StatusBadRequest},
		{fmt.Errorf("%w: s3 down", common.ErrUploadFailed), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.textures.err = tt.err
			body, ct := multipartBody(t, nil, []byte("x"))
			req := httptest.NewRequest(http.MethodPut, "/api/user/profile/x/skin", body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("Authorization", "Bearer tok")
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "tok", f.textures.gotToken)
		})
	}
}

// errReader fails the test if the handler touches the request body.
type errReader struct{ t *testing.T }

func (r errReader) Read([]byte) (int, error) {
	r.t.Fatalf("request body read before the bearer token was checked")
	return 0, io.ErrUnexpectedEOF
}

func TestUploadTexture_NoBearerRejectedBeforeBody(t *testing.T) {
	for _, header := range []string{"", "Basic abc", "Bearer"} {
		t.Run(header, func(t *testing.T) {
			f := newFixture(t)
			req := httptest.NewRequest(http.MethodPut, "/api/user/profile/x/skin", errReader{t})
			req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, 0, f.textures.calls)
		})
	}
}

func TestDeleteTexture(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodDelete, "/api/user/profile/x/cape", nil, "Authorization", "Bearer abc")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "abc", f.textures.gotToken)

	rec = f.do(http.MethodDelete, "/api/user/profile/x/cape", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, f.textures.calls)
}

func TestTexture(t *testing.T) {
	f := newFixture(t)
	hash := strings.Repeat("b", 64)
	f.textures.blobs[hash] = []byte("png")

	rec := f.do(http.MethodGet, "/textures/"+hash, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"`+hash+`"`, rec.Header().Get("ETag"))
	assert.Equal(t, "public, max-age=2592000", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "png", rec.Body.String())

	rec = f.do(http.MethodGet, "/textures/"+strings.Repeat("c", 64), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRootAndStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"meta": {
			"serverName": "Test",
			"implementationName": "yggkeeper",
			"implementationVersion": "dev",
			"feature.non_email_login": true
		},
		"skinDomains": ["localhost"],
		"signaturePublickey": "-----BEGIN PUBLIC KEY-----"
	}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user.count":2,"token.count":3,"pendingAuthentication.count":1}`, rec.Body.String())
}

func TestSendVerifyCode(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/starlight/sendVerifyCode/a@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","receiver":"a@example.com"}`, rec.Body.String())

	f.verifier.err = common.ErrRateLimited
	rec = f.do(http.MethodGet, "/starlight/sendVerifyCode/a@example.com", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"status":"failed","errorMessage":"Exceed speed limit.","receiver":"a@example.com"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/starlight/sendVerifyCode/not-an-email", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyImage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/starlight/verifyImage", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","origin_width":4,"origin_height":3,"width":4,"height":3,
		"client_id":"c1","image":"anBn"}`, rec.Body.String())

	f.starlight.err = common.ErrorInternal
	rec = f.do(http.MethodGet, "/starlight/verifyImage", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"failed","errorMessage":"Failed to get verify image"}`, rec.Body.String())
}

func TestStarlightLogin(t *testing.T) {
	form := "email=a%40example.com&pwd=secret&clientId=c1&verifyDegree=-42"

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"success", nil, http.StatusOK, `{"status":"success"}`},
		{"wrong code", common.ErrWrongVerifyCode, http.StatusOK, `{"status":"failed","errorMessage":"Wrong verify code!"}`},
		{"wrong password", fmt.Errorf("%w: %w", common.ErrInvalidCredentials, common.ErrRateLimited), http.StatusOK,
			`{"status":"failed","errorMessage":"Wrong password!"}`},
		{"internal", common.ErrorInternal, http.StatusInternalServerError, `{"status":"failed","errorMessage":"Internal error."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.starlight.err = tt.err
			rec := f.do(http.MethodPost, "/starlight/login", form, "Content-Type", "application/x-www-form-urlencoded")
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			assert.Equal(t, []string{"a@example.com", "secret", "c1"}, f.starlight.gotLogin)
			assert.Equal(t, -42, f.starlight.gotDegree)
		})
	}
}

func TestStarlightLogin_QueryParams(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/starlight/login?email=a%40example.com&pwd=p&clientId=c9&verifyDegree=7", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a@example.com", "p", "c9"}, f.starlight.gotLogin)
	assert.Equal(t, 7, f.starlight.gotDegree)
}

func TestStarlightLogin_BadRequest(t *testing.T) {
	for _, form := range []string{
		"pwd=p&clientId=c&verifyDegree=1",
		"email=a%40example.com&clientId=c&verifyDegree=1",
		"email=a%40example.com&pwd=p&verifyDegree=1",
		"email=a%40example.com&pwd=p&clientId=c",
		"email=a%40example.com&pwd=p&clientId=c&verifyDegree=ninety",
		"email=nope&pwd=p&clientId=c&verifyDegree=1",
	} {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/starlight/login", form, "Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, http.StatusBadRequest, rec.Code, form)
		assert.Nil(t, f.starlight.gotLogin, form)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/status", nil)

	rec := f.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/status"`)
}

func TestRecoverer(t *testing.T) {
	f := newFixture(t)
	f.router = NewRouter(Deps{Profiles: &panickingProfiles{}})

	rec := f.do(http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "goroutine")
}

type panickingProfiles struct{ fakeProfiles }

func (*panickingProfiles) Status(context.Context) (*services.Status, error) {
	panic("tokens: unknown level 7")
}
