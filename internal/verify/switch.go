package verify

// Switch is a bitmask of checks NonContextual/Contextual may skip for a
// given call — the mechanism behind spec 6's process_block_async/
// process_block_blocking "switch" parameter. A resync or replay path
// that already trusts a block's history passes a non-zero Switch to
// avoid redoing work a prior verification pass already did; a normal
// submission passes the zero value and gets every check.
type Switch uint8

const (
	// DisableNonContextual skips the Non-Contextual Verifier entirely.
	DisableNonContextual Switch = 1 << iota
	// DisableScript skips the Script VM capability's cycle accounting
	// (checkScripts) and the fee resolution it feeds to the cellbase
	// reward check.
	DisableScript
	// DisableUncles skips the uncle checks of both verifiers
	// (checkUncleShape and checkUncles).
	DisableUncles
	// DisableTwoPhaseCommit skips the proposal-window check.
	DisableTwoPhaseCommit
	// DisableEpoch skips the epoch-token/difficulty match check.
	DisableEpoch

	// DisableAll skips every check this bitmask names.
	DisableAll = DisableNonContextual | DisableScript | DisableUncles | DisableTwoPhaseCommit | DisableEpoch
)

// Has reports whether every bit in other is set in sw.
func (sw Switch) Has(other Switch) bool {
	return sw&other == other
}
