package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/gigboard/internal/api"
	"github.com/Tyrowin/gigboard/internal/api/mocks"
	"github.com/Tyrowin/gigboard/internal/auth"
	"github.com/Tyrowin/gigboard/internal/store"
)

type HandlerSuite struct {
	suite.Suite
	tokens *auth.TokenService
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupSuite() {
	s.tokens = auth.NewTokenService("test-signing-key", time.Hour)
}

func (s *HandlerSuite) newHandler(t *testing.T) (*mocks.MockStore, *mocks.MockGigCreator, http.Handler) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	gigs := mocks.NewMockGigCreator(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return st, gigs, api.NewHandler(st, gigs, s.tokens, logger).Routes()
}

func (s *HandlerSuite) bearer(t *testing.T, userID string) string {
	token, err := s.tokens.Issue(userID)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, h http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["error"].(string)
	return code
}

func (s *HandlerSuite) TestRegister() {
	s.T().Run("creates the user and returns a token - 201", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().
			CreateUser(gomock.Any(), "Asha", "asha@campus.edu", gomock.Any()).
			DoAndReturn(func(_ context.Context, name, email, hash string) (*store.User, error) {
				assert.NoError(t, auth.CheckPassword(hash, "secret123"))
				return &store.User{ID: "u1", Name: name, Email: email, PasswordHash: hash}, nil
			})

		rec := do(t, h, http.MethodPost, "/auth/register", "",
			`{"name":" Asha ","email":"asha@campus.edu","password":"secret123"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			Token  string `json:"token"`
			UserID string `json:"userId"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "u1", resp.UserID)

		claims, err := s.tokens.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
	})

	s.T().Run("duplicate email - 409", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("create user: %w", store.ErrConflict))

		rec := do(t, h, http.MethodPost, "/auth/register", "",
			`{"name":"Asha","email":"asha@campus.edu","password":"secret123"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, api.CodeEmailTaken, errorCode(t, rec))
	})

	s.T().Run("invalid email - 400", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rec := do(t, h, http.MethodPost, "/auth/register", "",
			`{"name":"Asha","email":"not-an-email","password":"secret123"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, api.CodeValidationFailed, errorCode(t, rec))
	})

	s.T().Run("malformed json - 400", func(t *testing.T) {
		_, _, h := s.newHandler(t)

		rec := do(t, h, http.MethodPost, "/auth/register", "", `{bad-json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, api.CodeInvalidRequest, errorCode(t, rec))
	})

	s.T().Run("store failure - 500", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("boom"))

		rec := do(t, h, http.MethodPost, "/auth/register", "",
			`{"name":"Asha","email":"asha@campus.edu","password":"secret123"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, api.CodeInternal, errorCode(t, rec))
	})
}

func (s *HandlerSuite) TestLogin() {
	hash, err := auth.HashPassword("secret123")
	s.Require().NoError(err)
	user := &store.User{ID: "u1", Name: "Asha", Email: "asha@campus.edu", PasswordHash: hash}

	s.T().Run("valid credentials - 200", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().FindUserByEmail(gomock.Any(), "asha@campus.edu").Return(user, nil)

		rec := do(t, h, http.MethodPost, "/auth/login", "",
			`{"email":"asha@campus.edu","password":"secret123"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"userId":"u1"`)
	})

	s.T().Run("wrong password - 401", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().FindUserByEmail(gomock.Any(), "asha@campus.edu").Return(user, nil)

		rec := do(t, h, http.MethodPost, "/auth/login", "",
			`{"email":"asha@campus.edu","password":"nope"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, api.CodeInvalidCredentials, errorCode(t, rec))
	})

	s.T().Run("unknown email - 401", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().FindUserByEmail(gomock.Any(), "ghost@campus.edu").Return(nil, store.ErrNotFound)

		rec := do(t, h, http.MethodPost, "/auth/login", "",
			`{"email":"ghost@campus.edu","password":"secret123"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, api.CodeInvalidCredentials, errorCode(t, rec))
	})
}

func (s *HandlerSuite) TestGigs() {
	s.T().Run("list requires a token - 401", func(t *testing.T) {
		_, _, h := s.newHandler(t)

		rec := do(t, h, http.MethodGet, "/gigs", "", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	s.T().Run("list returns gigs - 200", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().ListGigs(gomock.Any(), 100).Return([]*store.GigListing{
			{Gig: store.Gig{ID: "g2", OwnerID: "u2"}, Owner: &store.UserSummary{ID: "u2", Name: "Alice"}},
			{Gig: store.Gig{ID: "g1", OwnerID: "u1"}, Owner: &store.UserSummary{ID: "u1", Name: "Bob"}},
		}, nil)

		rec := do(t, h, http.MethodGet, "/gigs", s.bearer(t, "u1"), "")

		require.Equal(t, http.StatusOK, rec.Code)
		var gigs []store.GigListing
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gigs))
		require.Len(t, gigs, 2)
		assert.Equal(t, "g2", gigs[0].ID)
		require.NotNil(t, gigs[0].Owner)
		assert.Equal(t, "Alice", gigs[0].Owner.Name)
	})

	s.T().Run("list flattens the gig and nests its owner", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().ListGigs(gomock.Any(), 100).Return([]*store.GigListing{
			{Gig: store.Gig{ID: "g1", OwnerID: "u2", Title: "Notes"}, Owner: &store.UserSummary{ID: "u2", Name: "Alice"}},
		}, nil)

		rec := do(t, h, http.MethodGet, "/gigs", s.bearer(t, "u1"), "")

		require.Equal(t, http.StatusOK, rec.Code)
		var raw []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		require.Len(t, raw, 1)
		assert.Equal(t, "Notes", raw[0]["title"])
		assert.Equal(t, "u2", raw[0]["ownerId"])
		assert.Equal(t, map[string]any{"id": "u2", "name": "Alice"}, raw[0]["owner"])
	})

	s.T().Run("list caps the limit", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().ListGigs(gomock.Any(), 500).Return(nil, nil)

		rec := do(t, h, http.MethodGet, "/gigs?limit=10000", s.bearer(t, "u1"), "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	s.T().Run("list rejects a bad limit - 400", func(t *testing.T) {
		_, _, h := s.newHandler(t)

		rec := do(t, h, http.MethodGet, "/gigs?limit=abc", s.bearer(t, "u1"), "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	s.T().Run("create uses the caller as owner - 201", func(t *testing.T) {
		_, gigs, h := s.newHandler(t)
		gigs.EXPECT().
			CreateGig(gomock.Any(), "u1", store.GigFields{
				Title:       "Dog walking",
				Description: "Evenings",
				Tags:        []string{"pets"},
				Price:       12,
				Unit:        "walk",
			}).
			Return(&store.Gig{ID: "g1", OwnerID: "u1", Title: "Dog walking"}, nil)

		rec := do(t, h, http.MethodPost, "/gigs", s.bearer(t, "u1"),
			`{"title":"Dog walking","description":"Evenings","tags":["pets"],"price":12,"unit":"walk"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"g1"`)
	})

	s.T().Run("create for a deleted owner - 404", func(t *testing.T) {
		_, gigs, h := s.newHandler(t)
		gigs.EXPECT().CreateGig(gomock.Any(), "u1", gomock.Any()).
			Return(nil, fmt.Errorf("resolve owner: %w", store.ErrNotFound))

		rec := do(t, h, http.MethodPost, "/gigs", s.bearer(t, "u1"),
			`{"title":"Dog walking","description":"Evenings","price":12}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, api.CodeUserNotFound, errorCode(t, rec))
	})

	s.T().Run("create without price - 400", func(t *testing.T) {
		_, gigs, h := s.newHandler(t)
		gigs.EXPECT().CreateGig(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rec := do(t, h, http.MethodPost, "/gigs", s.bearer(t, "u1"),
			`{"title":"Dog walking","description":"Evenings"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, api.CodeValidationFailed, errorCode(t, rec))
	})

	s.T().Run("create rejects non-json content - 415", func(t *testing.T) {
		_, _, h := s.newHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/gigs", strings.NewReader("title=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", s.bearer(t, "u1"))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func (s *HandlerSuite) TestConversation() {
	s.T().Run("returns history for the caller", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().ListConversation(gomock.Any(), "u1", "u2", 200).
			Return([]*store.Message{{ID: "m1", SenderID: "u2", RecipientID: "u1", Text: "hi"}}, nil)

		rec := do(t, h, http.MethodGet, "/messages/u2", s.bearer(t, "u1"), "")

		require.Equal(t, http.StatusOK, rec.Code)
		var messages []store.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
		require.Len(t, messages, 1)
		assert.Equal(t, "hi", messages[0].Text)
	})

	s.T().Run("accepts x-auth-token", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().ListConversation(gomock.Any(), "u1", "u2", 200).Return(nil, nil)

		token, err := s.tokens.Issue("u1")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/messages/u2", nil)
		req.Header.Set(auth.HeaderAuthToken, token)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	s.T().Run("store failure - 500", func(t *testing.T) {
		st, _, h := s.newHandler(t)
		st.EXPECT().ListConversation(gomock.Any(), "u1", "u2", 200).Return(nil, errors.New("boom"))

		rec := do(t, h, http.MethodGet, "/messages/u2", s.bearer(t, "u1"), "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
