// Package standardform defines the canonical intermediate document every
// platform adapter produces and the loader consumes.
//
// A Form is a tree: one event, its races, and each race's raw results. Raw
// fields are write-once; the completion flags (brief and detailed loading per
// race, detailed per result, loaded per race) only ever move from false to
// true. The flags are unexported and survive JSON round trips so a form read
// back from a checkpoint resumes exactly where the previous attempt stopped.
package standardform
