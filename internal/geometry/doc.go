// Package geometry holds the coordinate-frame math shared by the dataset
// tooling: lidar, rectified-camera and image-pixel transforms driven by a
// per-frame Calibration, box conversions between the camera and lidar
// conventions, field-of-view masks and point-in-box membership.
//
// Conventions:
//   - Lidar frame: X forward, Y left, Z up. LidarBox centres are gravity
//     centres, dimensions are length-width-height, yaw is about +Z.
//   - Rectified camera frame: X right, Y down, Z forward. CameraBox
//     locations are bottom centres, dimensions are length-height-width,
//     yaw (rotation_y) is about +Y.
//
// Everything here is pure. Malformed calibration is not rejected; it shows
// up as NaN or Inf in the outputs and is left for callers to detect.
package geometry
