// Package model contains the in-memory representation of the units of work a
// processor handles: artifact fetch requests decoded from dispatcher
// assignments and the reason codes attached to their failures.
//
// Types defined here are shared by the queue, fetcher, verifier and state
// machine packages so that none of them has to import another for plain data.
package model
