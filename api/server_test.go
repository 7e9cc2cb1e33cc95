package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/api"
	"github.com/GhasemiTaheri/aban-exchange/api/handlers"
	"github.com/GhasemiTaheri/aban-exchange/internal/settlement"
	apierrors "github.com/GhasemiTaheri/aban-exchange/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type submission struct {
	owner  uint64
	amount int64
	price  int64
}

// stubIntake records submissions and returns err when set
type stubIntake struct {
	calls []submission
	err   error
}

func (s *stubIntake) Submit(_ context.Context, owner uint64, amount, price int64) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	s.calls = append(s.calls, submission{owner, amount, price})
	return uuid.New(), nil
}

type stubQueue struct {
	depth int64
	err   error
}

func (s *stubQueue) Len(context.Context) (int64, error) { return s.depth, s.err }

// helper to set up router
func setupRouter(intake *stubIntake, queue *stubQueue, dbErr error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	srv := api.NewServer(zap.NewNop(), testSecret, api.Dependencies{
		Intake: intake,
		Queue:  queue,
		PingDB: func(context.Context) error { return dbErr },
	})
	return srv.Router()
}

func signToken(t *testing.T, secret string, userID uint64, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, api.TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func postOrder(router *gin.Engine, token string, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/order/create", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateOrder_Created(t *testing.T) {
	intake := &stubIntake{}
	router := setupRouter(intake, &stubQueue{}, nil)

	w := postOrder(router, signToken(t, testSecret, 42, time.Now().Add(time.Hour)), `{"amount": 3, "price": 4}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, handlers.ReceiptMessage, resp["detail"])
	assert.Equal(t, []submission{{42, 3, 4}}, intake.calls)
}

func TestCreateOrder_ValidationFailure(t *testing.T) {
	intake := &stubIntake{}
	router := setupRouter(intake, &stubQueue{}, nil)
	token := signToken(t, testSecret, 42, time.Now().Add(time.Hour))

	for _, body := range []string{
		`{"amount": 0, "price": 4}`,
		`{"amount": 3, "price": -1}`,
		`{"amount": 3}`,
		`{"amount": 1.5, "price": 4}`,
		`not json`,
	} {
		w := postOrder(router, token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, apierrors.ContentType, w.Header().Get("Content-Type"), body)
	}
	assert.Empty(t, intake.calls)

	w := postOrder(router, token, `{"amount": 0, "price": 4}`)
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeValidationError, problem["type"])
	require.Len(t, problem["errors"], 1)
	assert.Equal(t, "amount", problem["errors"].([]interface{})[0].(map[string]interface{})["field"])
}

func TestCreateOrder_Unauthorized(t *testing.T) {
	intake := &stubIntake{}
	router := setupRouter(intake, &stubQueue{}, nil)

	cases := map[string]string{
		"missing":      "",
		"garbage":      "not-a-jwt",
		"wrong secret": signToken(t, "other-secret", 42, time.Now().Add(time.Hour)),
		"expired":      signToken(t, testSecret, 42, time.Now().Add(-time.Hour)),
		"no user":      signToken(t, testSecret, 0, time.Now().Add(time.Hour)),
	}
	for name, token := range cases {
		w := postOrder(router, token, `{"amount": 3, "price": 4}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/order/create", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Empty(t, intake.calls)
}

func TestCreateOrder_QueueUnavailable(t *testing.T) {
	intake := &stubIntake{err: settlement.ErrQueueUnavailable.New("connection refused")}
	router := setupRouter(intake, &stubQueue{}, nil)

	w := postOrder(router, signToken(t, testSecret, 42, time.Now().Add(time.Hour)), `{"amount": 3, "price": 4}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthCheck(t *testing.T) {
	router := setupRouter(&stubIntake{}, &stubQueue{depth: 7}, nil)
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(7), resp["queue_depth"])
}

func TestHealthCheck_DependencyDown(t *testing.T) {
	router := setupRouter(&stubIntake{}, &stubQueue{err: errors.New("down")}, nil)
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp["queue"])
	assert.Equal(t, "ok", resp["database"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupRouter(&stubIntake{}, &stubQueue{}, nil)
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aban_intake_queue_depth")
}
