// Package consensus answers a request by sampling it several times and
// letting the model reconcile the samples.
//
// Pipeline:
//
//	shot 1 (with web research) ... shot N
//	  -> "Answer k:" bundle -> researcher -> resolver [-> action]
//
// Shots run one after another so the answer labels follow completion order
// and later shots see the engine state left by earlier ones.
package consensus
