// Package model wires the operators into the two colorization networks.
//
// An Arch describes a variant (encoder block kind, widths, depths, decoder
// kind and the attentional decoder stage). A single walk over an Arch
// produces, in checkpoint order, the weight schedule (Schedule), the bound
// network (Bind) and synthetic weights (Synthesize), so the three cannot
// disagree.
//
// Bound parameters live in typed bundles (Conv, BatchNorm, ResidualBlock,
// DecoderBlock, ...). Name lookups and shape checks happen once, at bind
// time; Network.Forward only moves tensors.
package model
