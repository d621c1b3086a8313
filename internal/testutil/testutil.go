// Package testutil provides shared helpers for Redis-backed unit tests.
// All helpers run against an in-memory miniredis server, so no Docker or
// external Redis is needed to run the suite.
package testutil
