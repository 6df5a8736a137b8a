// Package story implements the write-and-review workflow: a writer agent
// drafts a short story from the user's intent and a reviewer agent critiques
// it. Both steps bind their output so process listeners (e.g. the A2A output
// emitter) can observe intermediate results as they become available.
package story
