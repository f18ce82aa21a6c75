package model

import "time"

// HashBlock is one link of the hash chain (§3, §4.7).
type HashBlock struct {
	ID             int64             `json:"id"`
	BlockHash      string            `json:"block_hash"`
	PreviousHash   string            `json:"previous_hash,omitempty"`
	MerkleRoot     string            `json:"merkle_root"`
	EventCount     int               `json:"event_count"`
	BatchStartID   string            `json:"batch_start_id"`
	BatchEndID     string            `json:"batch_end_id"`
	CreatedAt      time.Time         `json:"created_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}
