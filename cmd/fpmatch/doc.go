// Package main hosts the fpmatch CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, builds the structured logger,
// and hands work to the workflow runner or the results database. Heavy
// lifting lives in the internal packages; commands here only translate flags
// into configuration and render what comes back.
package main
