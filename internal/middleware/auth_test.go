package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/trackfit/internal/auth"
	"github.com/2beens/trackfit/internal/middleware"
	"github.com/2beens/trackfit/internal/users"
)

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	loginChecker := auth.NewLoginTestChecker()
	loginChecker.LoggedSessions["valid-token"] = true
	authMiddleware := middleware.NewAuthMiddlewareHandler(loginChecker)

	testCases := []struct {
		name               string
		path               string
		method             string
		token              string
		expectedStatusCode int
	}{
		{
			name:               "RootWithoutToken",
			path:               "/",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "VersionWithoutToken",
			path:               "/version",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "LoginWithoutToken",
			path:               "/a/login",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "SignupWithoutToken",
			path:               "/a/signup",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "LogoutWithoutToken",
			path:               "/a/logout",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ActivitiesWithoutToken",
			path:               "/activities",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ActivitiesValidToken",
			path:               "/activities",
			method:             "GET",
			token:              "valid-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ActivitiesInvalidToken",
			path:               "/activities",
			method:             "GET",
			token:              "invalid-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "DashboardValidToken",
			path:               "/stats/dashboard",
			method:             "GET",
			token:              "valid-token",
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, tc.path, nil)
			require.NoError(t, err)
			if tc.token != "" {
				req.Header.Add(users.AuthTokenHeader, tc.token)
			}

			rr := httptest.NewRecorder()
			handler := authMiddleware.AuthCheck()(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				},
			))
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
		})
	}
}

func TestAuthMiddlewareHandler_AuthCheck_Options(t *testing.T) {
	authMiddleware := middleware.NewAuthMiddlewareHandler(auth.NewLoginTestChecker())

	req, err := http.NewRequest("OPTIONS", "/activities", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()

	nextCalled := false
	handler := authMiddleware.AuthCheck()(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
		},
	))
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, nextCalled)
}
