// Package core splits tabular uploads into one file per distinct column value.
//
// This package holds all domain logic, independent of any transport. Web
// handlers and the splitfile CLI both drive it.
//
// # Pipeline
//
// A [Pipeline] run is a strict forward sequence:
//
//  1. [Ingestor] parses CSV, XLSX, XLS or text bytes into a [Dataset].
//     Text encodings are guessed, then confirmed by an ordered fallback
//     chain where the first encoding that decodes and parses wins.
//  2. [Split] partitions rows by the split column, optionally capped by
//     batch size.
//  3. [Materialize] renders each [RowGroup] back to the upload's format
//     under a unique, sanitized filename.
//  4. [Package] zips the artifacts into the run's scratch directory and
//     the [ArchiveStore] publishes the zip.
//
// Every failure becomes a [SplitResult] with Success false. Stages return
// [*SplitError] values whose kind can be tested with errors.Is against
// [ErrUnsupportedFormat], [ErrDecoding], [ErrSchema], [ErrRendering] and
// [ErrPackaging].
//
// # Tasks
//
// [Service] runs pipelines in the background, bounded by a [JobLimiter],
// and records progress in a [TaskStore]:
//
//	pending -> processing -> completed | error
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Codes are grouped as FILE, VAL, SPL, TASK, UPL and RATE.
package core
