package engine

// UsageLimits optionally bounds a single run's consumption, surfaced via
// LoopError{Kind: ErrUsageLimitExceeded} (ties to the error kind §7 names
// but never gives a concrete trigger point; checked alongside the turn-limit
// check in step 2 of the per-turn sequence).
type UsageLimits struct {
	MaxRequests  *int
	MaxTokens    *int
	MaxToolCalls *int
}

// LoopConfig is the engine's configuration surface (§6). SystemPrompt,
// MaxTurns, and ParallelToolExecution are the normative fields; Usage is the
// ambient addition filling the gap noted above.
type LoopConfig struct {
	SystemPrompt          string
	MaxTurns              *int
	ParallelToolExecution bool
	Usage                 *UsageLimits
}
