// Package device allocates 9-digit device ids and persists device records.
//
// Ids are drawn uniformly from [100000000, 1000000000) using crypto/rand and
// claimed through an atomic insert-if-absent on the Registry, so concurrent
// registrations never hand out the same id. Backends: in-memory, PostgreSQL,
// MongoDB and Redis.
package device
