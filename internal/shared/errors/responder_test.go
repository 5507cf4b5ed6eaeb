package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func respondWithNewResponder(t *testing.T, err error) ProblemDetail {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/orders", nil)
	NewResponder("").RespondError(c, err)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func TestRespondError_DebugDetailToggle(t *testing.T) {
	t.Cleanup(func() { SetDebugDetail(false) })

	SetDebugDetail(true)
	problem := respondWithNewResponder(t, errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, problem.Status)
	require.Equal(t, "pq: connection refused", problem.Detail)

	SetDebugDetail(false)
	problem = respondWithNewResponder(t, errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, problem.Status)
	require.Empty(t, problem.Detail)
}

func TestChainedResponder_InheritsDebugDetail(t *testing.T) {
	t.Cleanup(func() { SetDebugDetail(false) })

	SetDebugDetail(true)
	responder := NewChainedResponder("")
	require.True(t, responder.IncludeInternalDetail)

	SetDebugDetail(false)
	responder = NewChainedResponder("")
	require.False(t, responder.IncludeInternalDetail)
}
