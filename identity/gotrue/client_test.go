package gotrue_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrine-app/authcore/identity"
	"github.com/peregrine-app/authcore/identity/gotrue"
	"github.com/peregrine-app/authcore/internal/utils"
)

const testAPIKey = "public-api-key"

func tokenBody(confirmed bool) map[string]any {
	user := map[string]any{
		"id":            "user-1",
		"email":         "john.doe@example.com",
		"user_metadata": map[string]string{"username": "johnd"},
	}
	if confirmed {
		user["email_confirmed_at"] = utils.Ptr(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	}
	return map[string]any{
		"access_token":  "access-abc",
		"refresh_token": "refresh-def",
		"user":          user,
	}
}

func TestSignInWithPassword(t *testing.T) {
	var gotPath, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAPIKey = r.Header.Get("apikey")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "john.doe@example.com", body["email"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(tokenBody(true)))
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	user, err := client.SignInWithPassword(context.Background(), "john.doe@example.com", "password123")
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/token?grant_type=password", gotPath)
	assert.Equal(t, testAPIKey, gotAPIKey)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, "access-abc", user.AccessToken)
	assert.Equal(t, "refresh-def", user.RefreshToken)
	assert.True(t, user.EmailConfirmed)
	assert.Equal(t, "johnd", user.Metadata["username"])
}

func TestSignInUnconfirmedEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(tokenBody(false)))
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	user, err := client.SignInWithPassword(context.Background(), "john.doe@example.com", "password123")
	require.NoError(t, err)
	assert.False(t, user.EmailConfirmed)
}

func TestInvalidCredentialsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error_code": "invalid_credentials",
			"msg":        "Invalid login credentials",
		})
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	_, err := client.SignInWithPassword(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Equal(t, identity.KindCredentialRejected, identity.KindOf(err))
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestRefreshTokenExpiredClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error_code": "refresh_token_not_found",
			"msg":        "Invalid Refresh Token: Refresh Token Not Found",
		})
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	_, err := client.RefreshToken(context.Background(), "stale")
	require.Error(t, err)
	assert.Equal(t, identity.KindSessionExpired, identity.KindOf(err))
}

func TestRateLimitClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	err := client.ResendVerification(context.Background(), "a@b.c")
	require.Error(t, err)
	assert.Equal(t, identity.KindRateLimited, identity.KindOf(err))
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	_, err := client.SignInWithPassword(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, identity.KindTransientNetwork, identity.KindOf(err))
}

func TestTransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := gotrue.New(server.URL, testAPIKey)
	_, err := client.SignInWithPassword(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, identity.KindTransientNetwork, identity.KindOf(err))
}

func TestSignOutSendsBearer(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	require.NoError(t, client.SignOut(context.Background(), "access-abc"))
	assert.Equal(t, "Bearer access-abc", gotAuth)
}

func TestSignUpReturnsConfirmationMessage(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "a@b.c"})
	}))
	defer server.Close()

	client := gotrue.New(server.URL, testAPIKey)
	msg, err := client.SignUp(context.Background(), identity.SignUpParams{
		Email:    "a@b.c",
		Password: "password123",
		Metadata: map[string]string{"username": "ab"},
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "a@b.c")

	data, ok := gotBody["data"].(map[string]any)
	require.True(t, ok, "metadata forwarded as data")
	assert.Equal(t, "ab", data["username"])
}
