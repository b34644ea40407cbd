// Package processor accepts dispatcher assignments.  Each assignment becomes
// a batch whose tasks are created, dispatched and queued for fetching;
// verification outcomes published by the verifier finish or fail them.
package processor
