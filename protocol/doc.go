// Package protocol implements the versioned YAML wire format exchanged between
// the dispatcher and processors.
//
// Every payload carries a top-level version tag.  Decode peeks at the tag,
// decodes with the matching version schema and upgrades the value one version
// at a time until it reaches the canonical Message.  Encode always emits the
// latest version.
package protocol
