// Package results is the canonical store of series, events, races, runners
// and their results.
//
// All writes go through WithTx so that race and runner resolution for one
// entity happens inside a single immediate transaction; two adapters running
// concurrently can therefore never create duplicate canonical rows for the
// same natural key. Field updates are applied only when a value actually
// changes and every applied change is recorded in the changes audit table
// together with the actor that made it.
package results
