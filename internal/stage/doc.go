// Package stage defines the contract shared by workflow stages and the error
// markers they use to classify failures.
//
// Stages wrap failures with Wrap so the CLI can map them to an exit code and
// an operator hint without parsing messages.
package stage
