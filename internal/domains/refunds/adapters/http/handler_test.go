package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	refundshttp "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/adapters/http"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/auth"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
	"github.com/Apurer/go-commerce-api-server/internal/shared/validation"
)

// scriptedService fails each use case with a preset error.
type scriptedService struct {
	requestErr error
	processErr error
}

func (s *scriptedService) Request(context.Context, ports.RequestInput) (*domain.Request, error) {
	return nil, s.requestErr
}

func (s *scriptedService) Process(context.Context, string, ports.Decision) (*domain.Request, error) {
	return nil, s.processErr
}

func (s *scriptedService) GetByID(context.Context, string) (*domain.Request, error) {
	return nil, ports.ErrNotFound
}

func (s *scriptedService) ListPending(context.Context) ([]*domain.Request, error) {
	return nil, nil
}

func newRefundRouter(service ports.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := refundshttp.NewHandler(service, validation.New())
	router := gin.New()
	buyer := router.Group("/", func(c *gin.Context) {
		c.Set(auth.PrincipalKey, auth.Principal{UserID: "user-1", Roles: []string{"customer"}})
	})
	handler.Register(buyer)
	admin := router.Group("/admin", func(c *gin.Context) {
		c.Set(auth.PrincipalKey, auth.Principal{UserID: "admin-1", Roles: []string{auth.RoleAdmin}})
	})
	handler.RegisterAdmin(admin)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestEndpoint_SecondOpenRequestIsBadRequest(t *testing.T) {
	router := newRefundRouter(&scriptedService{requestErr: ports.ErrOpenRequestExists})

	w := doJSON(router, http.MethodPost, "/orders/order-1/refunds", `{"reason":"damaged"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var problem sharederrors.ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	require.Equal(t, sharederrors.TypeBadRequest, problem.Type)
}

func TestProcessEndpoint_AlreadyDecidedIsConflict(t *testing.T) {
	router := newRefundRouter(&scriptedService{processErr: domain.ErrAlreadyDecided})

	w := doJSON(router, http.MethodPut, "/admin/refunds/req-1", `{"decision":"approved"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	var problem sharederrors.ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	require.Equal(t, sharederrors.TypeConflict, problem.Type)
}
