package api

import (
	"github.com/samcharles93/fastvec/internal/neighbors"
)

type ResponseError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ResponseError `json:"error"`
}

type InfoResponse struct {
	RunID     string `json:"run_id"`
	Mode      string `json:"mode"`
	Loss      string `json:"loss"`
	Dim       int    `json:"dim"`
	Inputs    int    `json:"inputs"`
	Outputs   int    `json:"outputs"`
	CreatedAt int64  `json:"created_at"`
}

type PredictRequest struct {
	Input     []int32 `json:"input"`
	K         *int    `json:"k,omitempty"`
	Threshold float32 `json:"threshold,omitempty"`
}

type LabelPrediction struct {
	Label       int32   `json:"label"`
	Probability float32 `json:"probability"`
	LogProb     float32 `json:"log_prob"`
}

type PredictResponse struct {
	ID          string            `json:"id"`
	Object      string            `json:"object"`
	Created     int64             `json:"created"`
	Predictions []LabelPrediction `json:"predictions"`
}

// NeighborsRequest asks for the neighbours of a known id or of an explicit
// vector.  Exactly one of ID and Vector must be set.
type NeighborsRequest struct {
	ID     *int32    `json:"id,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
	K      *int      `json:"k,omitempty"`
}

type AnalogiesRequest struct {
	A int32 `json:"a"`
	B int32 `json:"b"`
	C int32 `json:"c"`
	K *int  `json:"k,omitempty"`
}

type NeighborsResponse struct {
	ID        string               `json:"id"`
	Object    string               `json:"object"`
	Created   int64                `json:"created"`
	Neighbors []neighbors.Neighbor `json:"neighbors"`
}
