// Package kitti reads and writes the KITTI-style per-frame text and binary
// formats the dataset is stored in: calibration records, label files,
// ground-plane records, fixed-stride float32 point blobs, image headers and
// the detection submission lines.
package kitti
