package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorevsig/app"
	"gorevsig/domain/run"
	"gorevsig/domain/signature"
	"gorevsig/internal/testkit"
)

func newTestServer(t *testing.T, maxBody int64) (*Server, *testkit.InMemoryRunRepository) {
	t.Helper()
	tk := testkit.NewTestKit()

	opts := app.DefaultOptions()
	opts.Pipeline.ReferenceSize = 100
	opts.Validation.Permutations = 100
	opts.Validation.BootstrapSamples = 100

	svc, err := app.NewRankingService(opts, tk.RNGAdapter(), tk.Logger())
	require.NoError(t, err)
	repo := tk.RunRepository()
	svc.WithStore(repo)

	return NewServer(svc, repo, Config{MaxBodyBytes: maxBody}, tk.Logger()), repo
}

func do(t *testing.T, s *Server, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRank_Records(t *testing.T) {
	s, repo := newTestServer(t, 0)

	body, err := json.Marshal(RankingRequest{Records: []signature.Record{
		{ID: "s1", CompoundID: "cmpd-a", Context: "MCF7", ValueUp: -1.5, ValueDown: -0.7},
		{ID: "s2", CompoundID: "cmpd-a", Context: "A549", ValueUp: -0.9, ValueDown: -1.1},
		{ID: "s3", CompoundID: "cmpd-b", Context: "MCF7", ValueUp: 0.8, ValueDown: 0.4},
	}})
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/v1/rankings", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result app.RankingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Compounds, 2)
	assert.Equal(t, "cmpd-a", string(result.Compounds[0].CompoundID))
	assert.NotEmpty(t, result.Fingerprint)
	assert.Equal(t, 1, repo.Saves())

	rec = do(t, s, http.MethodGet, "/v1/runs/"+string(result.RunID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored run.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, result.Fingerprint, stored.Manifest.OutputFingerprint)

	rec = do(t, s, http.MethodGet, "/v1/runs?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var manifests []run.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &manifests))
	assert.Len(t, manifests, 1)
}

func TestRank_CSVVerify(t *testing.T) {
	s, _ := newTestServer(t, 0)

	csv := "compound,up,down,cell_id\ncmpd-a,-1,-2,MCF7\ncmpd-a,-0.5,-0.4,PC3\ncmpd-b,1,0.5,MCF7\n"
	rec := do(t, s, http.MethodPost, "/v1/rankings?verify=true", "text/csv", []byte(csv))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"fingerprint"`)
}

func TestRank_MissingCompoundColumn(t *testing.T) {
	s, _ := newTestServer(t, 0)

	body := []byte(`{"table":{"header":["up","down"],"rows":[["-1","-1"]]}}`)
	rec := do(t, s, http.MethodPost, "/v1/rankings", "application/json", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestRank_EmptyRequest(t *testing.T) {
	s, _ := newTestServer(t, 0)

	rec := do(t, s, http.MethodPost, "/v1/rankings", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRank_MalformedJSON(t *testing.T) {
	s, _ := newTestServer(t, 0)

	rec := do(t, s, http.MethodPost, "/v1/rankings", "application/json", []byte(`{"records":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRank_BodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, 16)

	body := []byte(`{"records":[{"id":"s1","compound_id":"cmpd-a","value_up":-1,"value_down":-1}]}`)
	rec := do(t, s, http.MethodPost, "/v1/rankings", "application/json", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetRun_NotFound(t *testing.T) {
	s, _ := newTestServer(t, 0)

	rec := do(t, s, http.MethodGet, "/v1/runs/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, 0)

	do(t, s, http.MethodGet, "/healthz", "", nil)
	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := rec.Body.String()
	assert.True(t, strings.Contains(out, `revsig_http_requests_total{code="200",route="/healthz"} 1`), out)
}
