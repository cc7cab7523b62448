// Command racefeed is the operator CLI: it runs the ingestion daemon, drives
// single scheduling passes from timers, and inspects or edits the scrape queue.
package main
