package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avanags/libris/internal/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *RESTClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewRESTClient(srv.URL, 5*time.Second)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRESTClient_Login_Success(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody credentialsRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(TokenPair{
			UserID:       "u1",
			AccessToken:  "acc",
			RefreshToken: "ref",
		})
	})

	pair, err := c.Login(context.Background(), "reader", "secret")
	require.NoError(t, err)
	require.Equal(t, "/auth/login", gotPath)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, credentialsRequest{Login: "reader", Password: "secret"}, gotBody)
	require.Equal(t, "u1", pair.UserID)
	require.Equal(t, "acc", pair.AccessToken)
	require.Equal(t, "ref", pair.RefreshToken)
}

func TestRESTClient_BearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]Booking{})
	})

	_, err := c.Bookings(context.Background(), "tok123")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok123", gotAuth)
}

func TestRESTClient_NonOK_ReturnsStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"no copies available"}`))
	})

	_, err := c.CreateOrder(context.Background(), "tok", OrderRequest{BookID: "b1", Quantity: 2})
	require.Error(t, err)

	se, ok := AsStatus(err)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, se.Code)
	require.Contains(t, se.Body, "no copies")
}

func TestRESTClient_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Bookings(context.Background(), "expired")
	require.True(t, IsUnauthorized(err))
}

func TestRESTClient_TransportError_WrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	c := NewRESTClient(srv.URL, time.Second)
	err := c.Ping(context.Background())
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestRESTClient_DeleteBooking_Path(t *testing.T) {
	var gotPath, gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteBooking(context.Background(), "tok", "r42"))
	require.Equal(t, "/bookings/r42", gotPath)
	require.Equal(t, http.MethodDelete, gotMethod)
}

func TestRESTClient_Refresh(t *testing.T) {
	var gotBody refreshRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: "a2", RefreshToken: "r2"})
	})

	pair, err := c.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "r1", gotBody.RefreshToken)
	require.Equal(t, "a2", pair.AccessToken)
}
