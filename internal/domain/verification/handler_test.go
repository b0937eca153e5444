package verification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medverify/internal/analyzer"
	"medverify/internal/middleware"
	jwtsvc "medverify/internal/pkg/jwt"
	"medverify/internal/storage"
)

type apiResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	List    []map[string]any
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))

	resp := apiResponse{Success: raw.Success, Error: raw.Error}
	if len(raw.Data) > 0 {
		if raw.Data[0] == '[' {
			require.NoError(t, json.Unmarshal(raw.Data, &resp.List))
		} else {
			require.NoError(t, json.Unmarshal(raw.Data, &resp.Data))
		}
	}
	return resp
}

type testEnv struct {
	router *gin.Engine
	jwt    *jwtsvc.Service
	az     *stubAnalyzer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	az := &stubAnalyzer{verdict: &analyzer.Verdict{IsAuthentic: true, Confidence: 0.92}}
	repo := NewRepository(newTestDB(t))
	svc := NewService(repo, storage.NewLocalStore(t.TempDir(), "/uploads"), az)
	j := jwtsvc.New("test-secret-123", time.Hour)

	r := gin.New()
	v1 := r.Group("/api/v1")
	protected := v1.Group("/")
	protected.Use(middleware.JWTAuth(j))
	RegisterRoutes(protected, NewHandler(svc))

	return &testEnv{router: r, jwt: j, az: az}
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken(userID)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) postVerify(t *testing.T, token, filename string, content []byte, metadata string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		declared := map[string]string{
			".png": "image/png",
			".gif": "image/gif",
		}[strings.ToLower(filepath.Ext(filename))]
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
		h.Set("Content-Type", declared)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if metadata != "" {
		require.NoError(t, w.WriteField("metadata", metadata))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/medications/verify", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, token, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestVerifyEndpoint_Success(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 7)

	w := env.postVerify(t, token, "box.png", pngBytes, `{"batch": "B-17"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, true, resp.Data["isAuthentic"])
	assert.InDelta(t, 0.92, resp.Data["confidence"].(float64), 1e-9)
	assert.NotEmpty(t, resp.Data["imageUrl"])
	assert.NotEmpty(t, resp.Data["timestamp"])

	// The record is retrievable by the submitting user.
	histResp := decodeResponse(t, env.get(t, token, "/api/v1/medications/history"))
	require.Len(t, histResp.List, 1)
	id := histResp.List[0]["id"].(string)

	getW := env.get(t, token, "/api/v1/medications/"+id)
	assert.Equal(t, http.StatusOK, getW.Code)
}

func TestVerifyEndpoint_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.postVerify(t, "", "box.png", pngBytes, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, env.az.calls)
}

func TestVerifyEndpoint_MissingImage(t *testing.T) {
	env := newTestEnv(t)

	w := env.postVerify(t, env.token(t, 7), "", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.az.calls)
}

func TestVerifyEndpoint_UnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	w := env.postVerify(t, env.token(t, 7), "box.gif", pngBytes, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.az.calls)
}

func TestVerifyEndpoint_PayloadTooLarge(t *testing.T) {
	env := newTestEnv(t)

	big := append([]byte{}, pngBytes...)
	big = append(big, bytes.Repeat([]byte{0}, storage.MaxImageSize)...)

	w := env.postVerify(t, env.token(t, 7), "box.png", big, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, env.az.calls)
}

func TestVerifyEndpoint_InvalidMetadata(t *testing.T) {
	env := newTestEnv(t)

	w := env.postVerify(t, env.token(t, 7), "box.png", pngBytes, "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.az.calls)
}

func TestVerifyEndpoint_AnalyzerFailure(t *testing.T) {
	env := newTestEnv(t)
	env.az.verdict = nil
	env.az.err = errors.New("analyzer unreachable: connection refused")

	w := env.postVerify(t, env.token(t, 7), "box.png", pngBytes, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	// No analyzer detail leaks to the client.
	assert.Equal(t, "Server error during verification", resp.Error.Message)
}

func TestHistoryEndpoint_OwnerIsolationAndOrder(t *testing.T) {
	env := newTestEnv(t)
	tokenA := env.token(t, 7)
	tokenB := env.token(t, 8)

	for range 3 {
		w := env.postVerify(t, tokenA, "box.png", pngBytes, "")
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := env.postVerify(t, tokenB, "box.png", pngBytes, "")
	require.Equal(t, http.StatusCreated, w.Code)

	respA := decodeResponse(t, env.get(t, tokenA, "/api/v1/medications/history"))
	require.Len(t, respA.List, 3)
	prev := time.Now().UTC().Add(time.Minute)
	for _, item := range respA.List {
		result := item["verificationResult"].(map[string]any)
		ts, err := time.Parse(time.RFC3339Nano, result["timestamp"].(string))
		require.NoError(t, err)
		assert.False(t, ts.After(prev), "history must be newest first")
		prev = ts
	}

	respB := decodeResponse(t, env.get(t, tokenB, "/api/v1/medications/history"))
	assert.Len(t, respB.List, 1)
}

func TestGetEndpoint_ForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	tokenA := env.token(t, 7)
	tokenB := env.token(t, 8)

	w := env.postVerify(t, tokenA, "box.png", pngBytes, "")
	require.Equal(t, http.StatusCreated, w.Code)

	hist := decodeResponse(t, env.get(t, tokenA, "/api/v1/medications/history"))
	require.Len(t, hist.List, 1)
	id := hist.List[0]["id"].(string)

	getW := env.get(t, tokenB, "/api/v1/medications/"+id)
	assert.Equal(t, http.StatusForbidden, getW.Code)
	assert.NotContains(t, getW.Body.String(), "imageUrl")
}

func TestGetEndpoint_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, env.token(t, 7), "/api/v1/medications/no-such-id")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
