package config

import "testing"

func TestHardForkSwitch_ActivationEpoch(t *testing.T) {
	s := HardForkSwitch{"extension_field": 5}
	if epoch, ok := s.ActivationEpoch("extension_field"); !ok || epoch != 5 {
		t.Fatalf("ActivationEpoch = (%d, %v), want (5, true)", epoch, ok)
	}
	if _, ok := s.ActivationEpoch("unknown_feature"); ok {
		t.Fatal("ActivationEpoch should report false for an unscheduled feature")
	}
}

func TestHardForkSwitch_IsActive(t *testing.T) {
	s := HardForkSwitch{"extension_field": 5}
	if s.IsActive("extension_field", 4) {
		t.Fatal("feature scheduled at epoch 5 should not be active at epoch 4")
	}
	if !s.IsActive("extension_field", 5) {
		t.Fatal("feature scheduled at epoch 5 should be active at epoch 5")
	}
	if !s.IsActive("extension_field", 100) {
		t.Fatal("feature scheduled at epoch 5 should stay active at epoch 100")
	}
	if s.IsActive("unknown_feature", 100) {
		t.Fatal("an unscheduled feature should never report active")
	}
}

func TestConsensus_CommitterRewardRatio(t *testing.T) {
	c := DefaultConsensus()
	if got := c.CommitterRewardRatio(); got != 10-c.ProposerRewardRatio {
		t.Fatalf("CommitterRewardRatio = %d, want %d", got, 10-c.ProposerRewardRatio)
	}
}

func TestConsensus_Validate_DefaultIsValid(t *testing.T) {
	if err := DefaultConsensus().Validate(); err != nil {
		t.Fatalf("DefaultConsensus().Validate() = %v, want nil", err)
	}
}

func TestConsensus_Validate_RejectsMissingID(t *testing.T) {
	c := DefaultConsensus()
	c.ID = ""
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject an empty consensus id")
	}
}

func TestConsensus_Validate_RejectsInvertedEpochLengthClamp(t *testing.T) {
	c := DefaultConsensus()
	c.MinEpochLength = c.MaxEpochLength + 1
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject min_epoch_length > max_epoch_length")
	}
}

func TestConsensus_Validate_RejectsInvertedProposalWindow(t *testing.T) {
	c := DefaultConsensus()
	c.ProposalWindow = ProposalWindow{Closest: 10, Farthest: 2}
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject closest > farthest")
	}
}

func TestConsensus_Validate_RejectsOversizedProposerRatio(t *testing.T) {
	c := DefaultConsensus()
	c.ProposerRewardRatio = 11
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject a proposer_reward_ratio above 10")
	}
}

func TestConsensus_Validate_RejectsZeroMaxBlockBytes(t *testing.T) {
	c := DefaultConsensus()
	c.MaxBlockBytes = 0
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject max_block_bytes = 0")
	}
}

func TestConsensusFor_MainnetIsInternallyConsistent(t *testing.T) {
	c := ConsensusFor(Mainnet)
	if err := c.Validate(); err != nil {
		t.Fatalf("mainnet consensus should validate: %v", err)
	}
	if c.GenesisEpoch.Length < c.MinEpochLength || c.GenesisEpoch.Length > c.MaxEpochLength {
		t.Fatalf("mainnet genesis epoch length %d falls outside its own clamp [%d, %d]",
			c.GenesisEpoch.Length, c.MinEpochLength, c.MaxEpochLength)
	}
}

func TestConsensusFor_TestnetRelaxesTiming(t *testing.T) {
	mainnet := ConsensusFor(Mainnet)
	testnet := ConsensusFor(Testnet)
	if testnet.EpochDurationTarget >= mainnet.EpochDurationTarget {
		t.Fatal("testnet should target a shorter epoch duration than mainnet")
	}
	if testnet.ID == mainnet.ID {
		t.Fatal("testnet and mainnet should carry distinct consensus ids")
	}
}
