// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package colorize

import (
	"errors"
	"fmt"

	"github.com/born-ml/deoldify/internal/model"
	"github.com/born-ml/deoldify/internal/tensor"
	"github.com/born-ml/deoldify/internal/weights"
)

// ErrNotInitialized is returned by Colorize before a successful Initialize.
var ErrNotInitialized = errors.New("colorize: engine is not initialized")

// ErrModelFile is returned by Initialize when the weight file of the
// requested variant cannot be opened.
var ErrModelFile = errors.New("colorize: model file unavailable")

// Weight file errors.
var (
	ErrTruncated    = weights.ErrTruncated
	ErrTrailingData = weights.ErrTrailingData
	ErrMissingParam = model.ErrMissingParam
	ErrParamShape   = model.ErrParamShape
	ErrUnusedParam  = model.ErrUnusedParam
)

// ShapeError reports an operator that rejected its inputs.
type ShapeError = tensor.ShapeError

// IOError reports a failure to read or write an image file.
type IOError struct {
	Op   string // "decode" or "encode"
	Path string // File involved, if any.
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("colorize: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("colorize: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}
