// Package sentinel defines a const-declarable error type.
//
// The root testpods package and the capability packages (wait, workload,
// service, storage) each export sentinel errors without importing one
// another. Declaring them as consts of this type keeps them immutable,
// unlike errors.New values which live in vars that callers could reassign.
package sentinel
