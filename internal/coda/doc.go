// Package coda builds and serves the per-frame metadata ("infos") of the
// CODa dataset in its KITTI-style layout.
//
// The pipeline reads raw frames through a FrameSource, assembles one
// InfoRecord per frame with an InfoBuilder, crops a ground-truth object
// database for augmentation with a GTDatabaseBuilder and persists both as
// JSON. A Dataset session loads the persisted infos for training or
// evaluation, optionally class-balanced by BalancedResample, and turns model
// output back into annotation records and KITTI submission files.
//
// Coordinate frames follow the geometry package: camera-convention boxes in
// annotations, lidar-convention boxes in gt_boxes_lidar and database entries.
package coda
