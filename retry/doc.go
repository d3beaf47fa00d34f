// Package retry wraps provider calls with a bounded failure budget.
//
// The Controller counts failures for the lifetime of its owner, sleeps a
// fixed interval between attempts and shrinks the memory context depth by one
// per failure so the next prompt is smaller. Once the budget is spent it
// returns ErrNoResult without making a further attempt.
package retry
