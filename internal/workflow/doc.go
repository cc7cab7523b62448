// Package workflow schedules scraped events onto their platform pipelines.
//
// The Manager runs one lane per enabled platform. Each lane loops: reap
// attempts that outlived the platform timeout plus a grace period, take the
// platform's file lock, pick the oldest eligible not_started event and hand
// it to stageexec, which starts the attempt, runs the five pipeline steps
// under a deadline and records the outcome. Lanes for different platforms run
// in parallel; the queue's partial unique index keeps a platform at one
// running attempt even across processes.
//
// RunOnce performs a single lane iteration and backs the run-once command.
package workflow
