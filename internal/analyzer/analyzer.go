// Package analyzer talks to the external image-analysis service that decides
// whether a photographed medication package is authentic.
package analyzer

import (
	"context"
	"errors"
	"io"
)

// ErrAnalysisFailed covers every way the analyzer call can go wrong:
// transport errors, non-success status, malformed response, timeout. Callers
// surface it as a generic server error; the specific cause is only logged.
var ErrAnalysisFailed = errors.New("analysis failed")

// Verdict is the analyzer's verdict, passed through untransformed.
type Verdict struct {
	IsAuthentic bool    `json:"isAuthentic"`
	Confidence  float64 `json:"confidence"`
}

// Analyzer inspects an image and returns an authenticity verdict. One attempt
// per call, no retries.
type Analyzer interface {
	Analyze(ctx context.Context, image io.Reader, filename string) (*Verdict, error)
}
