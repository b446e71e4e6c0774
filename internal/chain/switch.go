package chain

import "github.com/shannonlabs/ckbcore/internal/verify"

// VerifySwitch is the bitmask spec 6's external interface table names
// on process_block_async/process_block_blocking. Defined in package
// verify (verify.Switch) since NonContextual/Contextual are what
// actually consult it; re-exported here under the Controller API's own
// name.
type VerifySwitch = verify.Switch

const (
	DisableNonContextual  = verify.DisableNonContextual
	DisableScript         = verify.DisableScript
	DisableUncles         = verify.DisableUncles
	DisableTwoPhaseCommit = verify.DisableTwoPhaseCommit
	DisableEpoch          = verify.DisableEpoch
	DisableAll            = verify.DisableAll
)
