// Package postgres provides the PostgreSQL-backed implementation of the
// queue storage interface defined in the internal/store package. It handles
// the details of query execution, claim atomicity (FOR UPDATE SKIP LOCKED),
// and data mapping between domain entities and database records.
package postgres
