// Package artifex provides an artifact processor.
//
// A dispatcher assigns batches of tasks, each naming an artifact by location
// (scheme://environmentCode/resourceCode) together with expected checksums
// and an optional signature.  The processor decodes the assignment from any
// supported protocol version, queues one fetch per resource, streams artifacts
// into local storage, verifies them asynchronously and reports every task
// transition back through an outbox:
//
//	srv, _ := artifex.New(ctx, artifex.WithConfig(cfg))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	receipt, _ := rt.HandleAssignment(ctx, payload)
//	msg, _ := rt.Outbox().Consume(ctx)
//
// For more details see the individual sub-packages.
package artifex
