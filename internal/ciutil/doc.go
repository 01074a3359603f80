// Package ciutil centralizes environment detection shared by tests and
// tooling: whether the process runs under a CI provider, and where the
// integration-test database lives. Integration tests skip silently on a
// developer machine without a database but fail loudly in CI, where the
// database is expected to be provisioned.
package ciutil
