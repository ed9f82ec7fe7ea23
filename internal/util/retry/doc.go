// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max attempts,
// initial delay, and maximum delay. It is used for Compute Engine API calls
// that fail with rate limiting or server errors.
package retry
