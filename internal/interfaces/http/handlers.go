package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moleculab/synthon-sieve/internal/application/subsetting"
	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/domain/decompose"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Handlers carries the wired application objects every endpoint needs.
type Handlers struct {
	engine   *decompose.Engine
	pipeline *subsetting.Pipeline
	log      logging.Logger
}

// NewHandlers wires the endpoint handlers.
func NewHandlers(engine *decompose.Engine, pipeline *subsetting.Pipeline, log logging.Logger) *Handlers {
	return &Handlers{engine: engine, pipeline: pipeline, log: log.Named("handlers")}
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// statusFor maps error codes to HTTP statuses: caller mistakes are 400,
// everything else is 500.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidSMILES, errors.CodeEmptyMolecule, errors.CodeUnknownElement,
		errors.CodeInvalidParam, errors.CodeUnknownMetric, errors.CodeUnknownRuleFamily:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			logging.String("path", c.FullPath()),
			logging.Err(err))
	}
	c.JSON(status, errorResponse{Code: errors.GetCode(err).String(), Error: err.Error()})
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type decomposeRequest struct {
	SMILES string `json:"smiles" binding:"required"`
}

type synthonView struct {
	Key        string `json:"key"`
	HeavyAtoms int    `json:"heavy_atoms"`
}

type decomposeResponse struct {
	SMILES   string        `json:"smiles"`
	Synthons []synthonView `json:"synthons"`
}

// Decompose parses a SMILES string and returns its synthon multiset.
func (h *Handlers) Decompose(c *gin.Context) {
	var req decomposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid request body"))
		return
	}

	mol, err := chem.ParseSMILES(req.SMILES)
	if err != nil {
		h.fail(c, err)
		return
	}
	synthons, err := h.engine.Decompose(mol)
	if err != nil {
		h.fail(c, err)
		return
	}

	views := make([]synthonView, len(synthons))
	for i, s := range synthons {
		views[i] = synthonView{Key: s.Key, HeavyAtoms: s.HeavyAtoms}
	}
	c.JSON(http.StatusOK, decomposeResponse{SMILES: req.SMILES, Synthons: views})
}

type scoreRequest struct {
	CompoundID string `json:"compound_id"`
	SMILES     string `json:"smiles" binding:"required"`
}

// Score runs one compound through the full assessment and returns its
// verdict, accepted or not.
func (h *Handlers) Score(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid request body"))
		return
	}
	if req.CompoundID == "" {
		req.CompoundID = req.SMILES
	}

	verdict, err := h.pipeline.Assess(c.Request.Context(), subsetting.Compound{
		ID:     req.CompoundID,
		SMILES: req.SMILES,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

type subsetRequest struct {
	Compounds []struct {
		ID     string `json:"id"`
		SMILES string `json:"smiles"`
	} `json:"compounds" binding:"required"`
}

type subsetResponse struct {
	RunID     string               `json:"run_id"`
	Processed int                  `json:"processed"`
	Retained  int                  `json:"retained"`
	Failed    int                  `json:"failed"`
	Issues    map[string]int       `json:"issues,omitempty"`
	Verdicts  []subsetting.Verdict `json:"verdicts"`
}

// Subset runs a small batch synchronously and returns the summary plus the
// forwarded verdicts.  Large catalogues belong in the CLI, not here.
func (h *Handlers) Subset(c *gin.Context) {
	var req subsetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid request body"))
		return
	}
	if len(req.Compounds) == 0 {
		h.fail(c, errors.New(errors.CodeInvalidParam, "compounds list is empty"))
		return
	}

	compounds := make([]subsetting.Compound, len(req.Compounds))
	for i, rc := range req.Compounds {
		id := rc.ID
		if id == "" {
			id = rc.SMILES
		}
		compounds[i] = subsetting.Compound{ID: id, SMILES: rc.SMILES}
	}

	sink := subsetting.NewSliceSink()
	summary, err := h.pipeline.Run(c.Request.Context(), subsetting.NewSliceSource(compounds), sink)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, subsetResponse{
		RunID:     summary.RunID,
		Processed: summary.Processed,
		Retained:  summary.Retained,
		Failed:    summary.Failed,
		Issues:    summary.Issues,
		Verdicts:  sink.Verdicts(),
	})
}
