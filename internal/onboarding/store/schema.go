package store

import _ "embed"

// Schema is the reference DDL for the onboarding tables. Deployments apply it
// through their migration tooling; integration tests apply it directly.
//
//go:embed schema.sql
var Schema string
