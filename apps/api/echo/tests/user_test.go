package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/virtuallab/apps/api/echo"
	"github.com/trezcool/virtuallab/core/user"
	"github.com/trezcool/virtuallab/tests"
)

func Test_health(t *testing.T) {
	app := setup(t)

	runHTTPTests(t, app, []httpTest{
		{name: "healthy", method: http.MethodGet, path: "/health", wantData: []byte(`{"status":"healthy"}`)},
		{name: "trailing slash", method: http.MethodGet, path: "/health/", wantData: []byte(`{"status":"healthy"}`)},
	})
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, usrRepo, "10222001", "Budi Santoso", "budi@test.id", "")

	body := func(nim, email string) []byte {
		return marchallObj(t, user.NewUser{
			NIM:             nim,
			FullName:        "Siti Aminah",
			Email:           email,
			Password:        "k0d3!rahasia",
			PasswordConfirm: "k0d3!rahasia",
		})
	}

	tests := []httpTest{
		{
			name: "NIM taken", body: body("10222001", "siti@test.id"), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"nim":"a user with this NIM already exists"}`),
		},
		{
			name: "email taken", body: body("10222002", "BUDI@test.id"), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"a user with this email already exists"}`),
		},
		{name: "invalid data", body: []byte(`{"nim":"1"}`), wantCode: http.StatusBadRequest},
		{name: "malformed json", body: []byte(`{"nim":`), wantCode: http.StatusBadRequest},
		{name: "registered", body: body("10222002", "siti@test.id"), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/register"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var resp struct {
					Message string    `json:"message"`
					User    user.User `json:"user"`
				}
				unmarshallObj(t, rec.Body.Bytes(), &resp)
				assert.Equal(t, "Registration successful", resp.Message)
				assert.Equal(t, "10222002", resp.User.NIM)
				assert.NotZero(t, resp.User.ID)
				assert.NotContains(t, rec.Body.String(), "password")
			}
		})
	}
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "10222001", "Budi Santoso", "budi@test.id", "s3cure!pw")

	login := func(nim, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{NIM: nim, Password: pwd})
	}
	failed := marchallObj(t, httpErr{Error: "invalid credentials"})

	tests := []httpTest{
		{
			name: "missing credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"nim":"this field is required","password":"this field is required"}`),
		},
		{name: "unknown NIM", body: login("10222999", "s3cure!pw"), wantCode: http.StatusUnauthorized, wantData: failed},
		{name: "wrong password", body: login("10222001", "s3cure!pW"), wantCode: http.StatusUnauthorized, wantData: failed},
		{name: "by NIM", body: login(" 10222001 ", "s3cure!pw"), wantCode: http.StatusOK},
		{name: "by email", body: login("Budi@Test.id", "s3cure!pw"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				unmarshallObj(t, rec.Body.Bytes(), &resp)
				require.NotNil(t, resp.User)
				assert.Equal(t, usr.ID, resp.User.ID)
				assert.True(t, resp.User.LastLogin.Valid)

				// the token is usable right away
				req, rec = newAuthRequest(http.MethodGet, "/api/auth/verify", resp.Token)
				app.ServeHTTP(rec, req)
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func Test_userApi_authRequired(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "10222001", "Budi Santoso", "budi@test.id", "")
	ghostToken := getToken(t, user.User{ID: usr.ID + 100, NIM: "10222999"})

	var tests []httpTest
	for _, path := range []string{"/api/auth/verify", "/api/user/name", "/api/user/profile", "/api/progress/quadratic", "/api/quiz/quadratic"} {
		tests = append(tests,
			httpTest{
				name: path + " no token", method: http.MethodGet, path: path,
				wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
			},
			httpTest{
				name: path + " bad token", method: http.MethodGet, path: path, token: "not.a.jwt",
				wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken),
			},
		)
	}
	tests = append(tests,
		httpTest{
			name: "unknown user", method: http.MethodGet, path: "/api/user/name", token: ghostToken,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	)
	runHTTPTests(t, app, tests)
}

func Test_userApi_currentUser(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "10222001", "Budi Santoso", "budi@test.id", "")
	token := getToken(t, usr)

	runHTTPTests(t, app, []httpTest{
		{name: "verify", method: http.MethodGet, path: "/api/auth/verify", token: token, wantData: []byte(`{"valid":true}`)},
		{name: "name", method: http.MethodGet, path: "/api/user/name", token: token, wantData: []byte(`{"name":"Budi Santoso"}`)},
		{name: "profile", method: http.MethodGet, path: "/api/user/profile", token: token, wantData: marchallObj(t, usr)},
	})
}

func Test_userApi_logout(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "10222001", "Budi Santoso", "budi@test.id", "")
	token := getToken(t, usr)
	otherToken := getToken(t, usr)
	revoked := marchallObj(t, httpErr{Error: "token has been revoked"})

	runHTTPTests(t, app, []httpTest{
		{name: "no token", method: http.MethodPost, path: "/api/auth/logout", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "logged out", method: http.MethodPost, path: "/api/auth/logout", token: token, wantData: []byte(`{"message":"Logout successful"}`)},
		{name: "token revoked", method: http.MethodGet, path: "/api/auth/verify", token: token, wantCode: http.StatusUnauthorized, wantData: revoked},
		{name: "logout twice", method: http.MethodPost, path: "/api/auth/logout", token: token, wantCode: http.StatusUnauthorized, wantData: revoked},
		{name: "other sessions live", method: http.MethodGet, path: "/api/auth/verify", token: otherToken, wantData: []byte(`{"valid":true}`)},
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "10222001", "Budi Santoso", "budi@test.id", "")

	now := time.Now()
	unrefreshableClaims := echoapi.GetUserClaims(conf, usr)
	unrefreshableClaims.OrigIssuedAt = now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix() // older than threshold
	unrefreshableToken, err := echoapi.GenerateToken(conf, unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	runHTTPTests(t, app, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/api/auth/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Refresh period expired", method: http.MethodPost, path: "/api/auth/token-refresh", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("Token refreshed", func(t *testing.T) {
		claims := echoapi.GetUserClaims(conf, usr, now.Add(-time.Hour).Unix())
		token, err := echoapi.GenerateToken(conf, claims)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodPost, "/api/auth/token-refresh", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.LoginResponse
		unmarshallObj(t, rec.Body.Bytes(), &resp)

		newClaims := new(echoapi.Claims)
		_, err = jwt.ParseWithClaims(resp.Token, newClaims, func(*jwt.Token) (interface{}, error) {
			return []byte(conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, claims.OrigIssuedAt, newClaims.OrigIssuedAt)
		assert.Equal(t, claims.Subject, newClaims.Subject)
		assert.NotEqual(t, claims.Id, newClaims.Id)

		// the refreshed token is retired
		req, rec = newAuthRequest(http.MethodGet, "/api/auth/verify", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/api/auth/verify", resp.Token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
