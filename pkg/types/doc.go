// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the source acquisition
// pipeline: Source records and their provider-specific details, the entities
// under research, the rivalry analysis contract handed back by the analysis
// consumer, and configuration.
package types
