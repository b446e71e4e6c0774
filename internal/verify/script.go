package verify

import "github.com/shannonlabs/ckbcore/pkg/chaintypes"

// ScriptVerifier is the Script VM capability spec 4.6 and 9 name:
// resolve a transaction's input cells, run its lock and type scripts
// against their witnesses, and report what that run cost. Fee is the
// transaction's input capacity minus its output capacity; cycles is
// the VM's own cost accounting, charged against the block's
// max_block_cycles cap. A failing script returns a non-nil err.
type ScriptVerifier interface {
	VerifyTransaction(tx *chaintypes.Transaction) (fee uint64, cycles uint64, err error)
}

// NopScriptVerifier is the deterministic fake spec 9 describes: no
// live Script VM is wired in, so every transaction is reported as
// free and free of cost. A node running it is trusting its peers'
// script validity rather than checking it — the wiring seam this
// capability exists for, not a production substitute.
type NopScriptVerifier struct{}

// VerifyTransaction implements ScriptVerifier.
func (NopScriptVerifier) VerifyTransaction(tx *chaintypes.Transaction) (uint64, uint64, error) {
	return 0, 0, nil
}
