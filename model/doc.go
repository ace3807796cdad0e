// Package model defines core types used throughout recogo.
//
// # Geometry Types
//
//   - PointCloud: ordered sequence of 3-D points in a shared reference frame
//   - Pose: rigid-body position + orientation (unit quaternion)
//
// # Identity Types
//
//   - ObjectID: stable identifier of a registered rigid model (uint32)
//
// # Result Types
//
//   - FitCandidate: one candidate assignment of model identity and pose to a
//     cluster, with a raw matching score in [0,1]
//   - Detection: an accepted recognition result carrying the confidence
//     transform of the raw score
//
// The confidence transform is Confidence(s) = 1 - (1-s)^2. It is concave on
// [0,1], so moderate raw scores map to noticeably higher confidences; the
// accept/reject cutoff is always applied to the transformed value, not to the
// raw score.
package model
