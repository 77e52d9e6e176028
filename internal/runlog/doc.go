// Package runlog records the namespaces created by each test run in a small
// SQLite database shared across processes. A run that exits cleanly removes
// its own entries; entries left behind belong to crashed runs and are the
// input for the purge helper, which deletes the namespaces they name.
//
// The database lives in a well-known location under the system temp
// directory. Concurrent test processes coordinate through a file lock held
// only for the duration of each write.
package runlog
