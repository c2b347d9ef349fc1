// Package api serves a trained model over HTTP: label prediction,
// nearest neighbours and analogies.
package api

import (
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/fastvec/internal/logger"
	"github.com/samcharles93/fastvec/internal/model"
	"github.com/samcharles93/fastvec/internal/neighbors"
	"github.com/samcharles93/fastvec/internal/vecfile"
)

const (
	defaultPredictK   = 1
	defaultNeighborsK = 10
)

// Server answers queries against one snapshot.  The matrices are never
// written after NewServer returns, so handlers share them freely; each
// request borrows its own model.State.
type Server struct {
	manifest vecfile.Manifest
	model    *model.Model
	index    *neighbors.Index
	states   sync.Pool
	log      logger.Logger
	clock    func() time.Time
}

func NewServer(snap *vecfile.Snapshot, log logger.Logger) (*Server, error) {
	if snap == nil {
		return nil, errorf("nil snapshot")
	}
	m, err := snap.Model()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		manifest: snap.Manifest,
		model:    m,
		index:    neighbors.NewIndex(m.Input()),
		log:      log,
		clock:    time.Now,
	}
	s.states.New = func() any { return m.NewState(0) }
	return s, nil
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/info", s.handleInfo)
	e.POST("/v1/predict", s.handlePredict)
	e.POST("/v1/neighbors", s.handleNeighbors)
	e.POST("/v1/analogies", s.handleAnalogies)
}

func (s *Server) handleInfo(c *echo.Context) error {
	m := s.manifest
	return c.JSON(http.StatusOK, InfoResponse{
		RunID:     m.RunID,
		Mode:      string(m.Mode),
		Loss:      string(m.Loss),
		Dim:       m.Dim,
		Inputs:    m.Inputs,
		Outputs:   m.Outputs,
		CreatedAt: m.CreatedAt.Unix(),
	})
}

func (s *Server) handlePredict(c *echo.Context) error {
	req, err := decodeJSON[PredictRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	k, err := resolveK(req.K, defaultPredictK)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Input) == 0 {
		return writeBadRequest(c, "input must contain at least one id")
	}
	if err := checkIDs("input", req.Input, s.model.Input().R); err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return writeBadRequest(c, "threshold must be within [0, 1]")
	}

	st := s.states.Get().(*model.State)
	defer s.states.Put(st)
	var preds model.Predictions
	if err := s.model.Predict(req.Input, k, req.Threshold, &preds, st); err != nil {
		if errors.Is(err, model.ErrInvalidK) || errors.Is(err, model.ErrEmptyInput) {
			return writeBadRequest(c, err.Error())
		}
		return s.internalError(c, err)
	}

	out := make([]LabelPrediction, len(preds))
	for i, p := range preds {
		out[i] = LabelPrediction{
			Label:       p.ID,
			Probability: float32(math.Exp(float64(p.Score))),
			LogProb:     p.Score,
		}
	}
	return c.JSON(http.StatusOK, PredictResponse{
		ID:          newPredictionID(),
		Object:      "prediction",
		Created:     s.clock().Unix(),
		Predictions: out,
	})
}

func (s *Server) handleNeighbors(c *echo.Context) error {
	req, err := decodeJSON[NeighborsRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	k, err := s.neighborsK(req.K)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	var res []neighbors.Neighbor
	switch {
	case req.ID != nil && req.Vector != nil:
		return writeBadRequest(c, "id and vector are mutually exclusive")
	case req.ID != nil:
		res, err = s.index.Nearest(*req.ID, k)
	case req.Vector != nil:
		res, err = s.index.Search(req.Vector, k, nil)
	default:
		return writeBadRequest(c, "one of id or vector is required")
	}
	if err != nil {
		return s.neighborsError(c, err)
	}
	return s.writeNeighbors(c, "neighbors", res)
}

func (s *Server) handleAnalogies(c *echo.Context) error {
	req, err := decodeJSON[AnalogiesRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	k, err := s.neighborsK(req.K)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	res, err := s.index.Analogies(req.A, req.B, req.C, k)
	if err != nil {
		return s.neighborsError(c, err)
	}
	return s.writeNeighbors(c, "analogies", res)
}

// neighborsK maps -1 to "every vector".
func (s *Server) neighborsK(k *int) (int, error) {
	n, err := resolveK(k, defaultNeighborsK)
	if err != nil {
		return 0, err
	}
	if n == -1 {
		n = max(s.index.Len(), 1)
	}
	return n, nil
}

func (s *Server) neighborsError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, neighbors.ErrUnknownID),
		errors.Is(err, neighbors.ErrZeroQuery),
		errors.Is(err, neighbors.ErrDimension),
		errors.Is(err, model.ErrInvalidK):
		return writeBadRequest(c, err.Error())
	}
	return s.internalError(c, err)
}

func (s *Server) writeNeighbors(c *echo.Context, object string, res []neighbors.Neighbor) error {
	return c.JSON(http.StatusOK, NeighborsResponse{
		ID:        newNeighborsID(),
		Object:    object,
		Created:   s.clock().Unix(),
		Neighbors: res,
	})
}

func (s *Server) internalError(c *echo.Context, err error) error {
	s.log.Error("request failed", "path", c.Request().URL.Path, "err", err)
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
}
