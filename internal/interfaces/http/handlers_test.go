package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleculab/synthon-sieve/internal/application/subsetting"
	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/domain/amicability"
	"github.com/moleculab/synthon-sieve/internal/domain/boringness"
	"github.com/moleculab/synthon-sieve/internal/domain/decompose"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/domain/similarity"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	log := logging.NewNopLogger()

	engine, err := decompose.NewEngine(decompose.DefaultConfig(), log)
	require.NoError(t, err)

	desc := chem.NewTopoPharmacophore()
	builder := library.NewBuilder(engine, desc,
		library.BuilderConfig{NormalizeTo: 0, MinSampleSize: 1}, log)

	sample := []string{"CC(=O)Nc1ccncc1", "CC(=O)Nc1ccccc1"}
	mols := make([]*chem.Mol, len(sample))
	for i, s := range sample {
		m, err := chem.ParseSMILES(s)
		require.NoError(t, err)
		mols[i] = m
	}
	lib, err := builder.Build(context.Background(), mols, nil)
	require.NoError(t, err)

	counter := similarity.NewParallelCounter(similarity.NewMomentDistance(), similarity.Options{Threshold: 0.7}, 2)
	scorer := amicability.NewScorer(engine, desc, counter, lib, nil, log)
	pipeline := subsetting.NewPipeline(scorer, boringness.New(boringness.Weights{}),
		subsetting.Config{Workers: 2, AnalysisMode: true}, nil, log)

	handlers := NewHandlers(engine, pipeline, log)
	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, handlers, nil, log)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestDecomposeEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/decompose",
		`{"smiles": "CC(=O)Nc1ccccc1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp decomposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Synthons, 2)
	for _, s := range resp.Synthons {
		assert.NotEmpty(t, s.Key)
		assert.Greater(t, s.HeavyAtoms, 0)
	}
}

func TestDecomposeRejectsBadSMILES(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/decompose", `{"smiles": "c1ccccc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Code)
	assert.NotEmpty(t, resp.Error)
}

func TestDecomposeRejectsMissingBody(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/decompose", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/score",
		`{"compound_id": "c-1", "smiles": "CC(=O)Nc1ccncc1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var v subsetting.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "c-1", v.CompoundID)
	assert.True(t, v.Acceptable)
	assert.Greater(t, v.Amicability, 0.0)
	assert.Negative(t, v.Boringness)
	assert.NotEmpty(t, v.Tier)
}

func TestScoreDefaultsCompoundID(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/score", `{"smiles": "CC(=O)Nc1ccncc1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var v subsetting.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "CC(=O)Nc1ccncc1", v.CompoundID)
}

func TestSubsetEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/subset", `{
		"compounds": [
			{"id": "keep", "smiles": "CC(=O)Nc1ccncc1"},
			{"id": "drop", "smiles": "CC(=O)Nc1ccccc1"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp subsetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 1, resp.Retained)
	assert.NotEmpty(t, resp.RunID)
	// Analysis mode forwards the rejected verdict too.
	assert.Len(t, resp.Verdicts, 2)
}

func TestSubsetRejectsEmptyList(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/subset", `{"compounds": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
