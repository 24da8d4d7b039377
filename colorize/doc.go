// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package colorize turns grayscale photographs into color ones with a
// pretrained U-Net.
//
// # Overview
//
// Two network variants are available:
//   - Stable: ResNet-101 encoder, wide decoder. Conservative colors.
//   - Artistic: ResNet-34 encoder, deep decoder. Bolder colors.
//
// Weights are read once from a models directory holding Stable.model and
// Artistic.model. The same names are used for float32 and float16 files;
// the Precision given to Initialize selects the decoding. An Engine holds
// one bound variant at a time and may be re-initialized with the other.
//
// # Basic Usage
//
//	engine := colorize.New(colorize.WithModelsDir("/opt/deoldify/models"))
//	if err := engine.Initialize(colorize.Stable, colorize.Full); err != nil {
//	    log.Fatal(err)
//	}
//
//	err := engine.ColorizeFile("old.jpg", "old-color.jpg", func(p float64) {
//	    fmt.Printf("\r%3.0f%%", p)
//	})
//
// # Errors
//
// Initialization fails with ErrModelFile when the weight file cannot be
// opened, and with ErrTruncated, ErrTrailingData or a binding error
// (ErrMissingParam, ErrParamShape) when it does not match its variant. Colorization reports decoding and encoding failures as *IOError
// and operator shape failures as *ShapeError.
package colorize
