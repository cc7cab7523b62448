// Package adapter defines the contract every platform adapter implements and
// the pipeline that drives one scraped event through the five ingestion
// steps: FetchAndNormalize, ResolveEvent, ResolveRaces, ResolveNewRunners and
// LoadResults.
//
// Progress lives in the Standard Form document, which the pipeline writes to
// the checkpoint store after every step and which adapters flush through
// Run.Tick while they work. A restarted attempt reloads the document and each
// step resumes from the flags it left behind.
package adapter
