package chaintypes

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// VerificationState is the one-way lifecycle of a stored block: it
// starts Unknown, then transitions exactly once to Valid or Invalid.
type VerificationState uint8

const (
	VerificationUnknown VerificationState = iota
	VerificationValid
	VerificationInvalid
)

// Difficulty wraps a big.Int so cumulative totals (which routinely
// exceed 64 bits a few epochs in) still marshal to a predictable hex
// string instead of JSON's float-lossy number encoding.
type Difficulty struct {
	big.Int
}

// NewDifficulty wraps v as a Difficulty.
func NewDifficulty(v *big.Int) Difficulty {
	d := Difficulty{}
	d.Set(v)
	return d
}

// Add returns a+b as a new Difficulty, leaving both operands untouched.
func (d Difficulty) Add(other Difficulty) Difficulty {
	return NewDifficulty(new(big.Int).Add(&d.Int, &other.Int))
}

// Cmp compares d against other, matching big.Int.Cmp's contract.
func (d Difficulty) Cmp(other Difficulty) int {
	return d.Int.Cmp(&other.Int)
}

func (d Difficulty) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", &d.Int))
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return fmt.Errorf("invalid difficulty %q", s)
	}
	d.Int = *v
	return nil
}

// BlockExt is the mutable metadata kept alongside an immutable stored
// block: everything computed during or after verification rather than
// carried in the block itself.
type BlockExt struct {
	ReceivedAt       uint64            `json:"received_at"`
	TotalDifficulty  Difficulty        `json:"total_difficulty"`
	TotalUnclesCount uint64            `json:"total_uncles_count"`
	Verified         VerificationState `json:"verified"`
	TxsFees          []uint64          `json:"txs_fees,omitempty"`
	Cycles           []uint64          `json:"cycles,omitempty"`
	TxsSizes         []uint64          `json:"txs_sizes,omitempty"`
}
