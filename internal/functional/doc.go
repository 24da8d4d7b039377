// Package functional implements the stateless CNN operators used by the
// colorization network.
//
// All operators take single-batch tensors: feature maps are [C, H, W] and
// attention operands are [C, N]. Shape violations panic with a
// *tensor.ShapeError; the graph runner recovers them into errors.
//
// Operators fall into two groups:
//
//   - Allocating: Conv2d, MaxPool2d, AvgPool2d, PixelShuffle,
//     PixelUnshuffle, RestrictedCat2d, Transpose2d, MatMul.
//   - Consuming: BatchNorm2d, ReLU, Sigmoid, MulScalar, Add (first
//     operand), Flatten, Unflatten, Softmax2d. These write the result into
//     the input buffer and return it; the caller must not use the input
//     afterwards.
//
// Heavy loops are spread across cores with internal/parallel and the
// matrix products run on gonum's SGEMM.
package functional
