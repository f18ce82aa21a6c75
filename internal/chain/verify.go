package chain

import (
	"github.com/SushanthKS06/IsoLog/internal/model"
)

// VerifyResult is the structured, non-mutating verification outcome of
// §7 ("User-visible failures are returned as structured results").
type VerifyResult struct {
	Valid          bool   `json:"valid"`
	BlocksVerified int    `json:"blocks_verified"`
	FailedAtBlock  int64  `json:"failed_at_block,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// VerifyChain walks blocks in id order and asserts continuity: for every
// block after the first, previous_hash must equal the prior block's
// block_hash (§4.7, invariant P2).
func VerifyChain(blocks []*model.HashBlock) VerifyResult {
	if len(blocks) == 0 {
		return VerifyResult{Valid: true, BlocksVerified: 0}
	}
	for i, blk := range blocks {
		if i == 0 {
			continue
		}
		prev := blocks[i-1]
		if blk.PreviousHash != prev.BlockHash {
			return VerifyResult{
				Valid:          false,
				BlocksVerified: i,
				FailedAtBlock:  blk.ID,
				Reason:         "previous_hash does not match predecessor block_hash",
			}
		}
	}
	return VerifyResult{Valid: true, BlocksVerified: len(blocks)}
}

// BatchVerifyResult is the outcome of VerifyBatch.
type BatchVerifyResult struct {
	Valid      bool   `json:"valid"`
	BlockHash  string `json:"block_hash,omitempty"`
	MerkleRoot string `json:"merkle_root,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// VerifyBatch recomputes the Merkle root and block hash over events
// against the expected values, without mutating any store (§4.7: "a
// batch-verify operation... returns a structured result without
// mutating state").
func VerifyBatch(events []*model.Event, expectedHash, expectedMerkleRoot, prevHash string) (BatchVerifyResult, error) {
	leaves := make([][32]byte, len(events))
	for i, ev := range events {
		ch, err := ev.ContentHash()
		if err != nil {
			return BatchVerifyResult{}, err
		}
		leaves[i] = ch
	}
	root := merkleRoot(leaves)
	rootHex := hexOf(root)
	if expectedMerkleRoot != "" && rootHex != expectedMerkleRoot {
		return BatchVerifyResult{Valid: false, MerkleRoot: rootHex, Reason: "merkle root mismatch"}, nil
	}
	hashHex := blockHash(prevHash, rootHex, len(events))
	if hashHex != expectedHash {
		return BatchVerifyResult{Valid: false, BlockHash: hashHex, MerkleRoot: rootHex, Reason: "block hash mismatch"}, nil
	}
	return BatchVerifyResult{Valid: true, BlockHash: hashHex, MerkleRoot: rootHex}, nil
}

// InclusionResult is the outcome of VerifyInclusion.
type InclusionResult struct {
	Included bool `json:"included"`
	Position int  `json:"position"`
}

// VerifyInclusion recomputes the Merkle root over batch and asserts it
// equals root, reporting target's position in the leaf vector if so
// (§4.7: "a single-event inclusion check... the event's position in the
// leaf vector is reported").
func VerifyInclusion(batch []*model.Event, target *model.Event, root string) (InclusionResult, error) {
	leaves := make([][32]byte, len(batch))
	pos := -1
	for i, ev := range batch {
		ch, err := ev.ContentHash()
		if err != nil {
			return InclusionResult{}, err
		}
		leaves[i] = ch
		if ev.ID == target.ID {
			pos = i
		}
	}
	if pos == -1 {
		return InclusionResult{Included: false}, nil
	}
	computed := hexOf(merkleRoot(leaves))
	if computed != root {
		return InclusionResult{Included: false}, nil
	}
	return InclusionResult{Included: true, Position: pos}, nil
}
