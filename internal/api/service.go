package api

import (
	"fmt"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/bus"
	"github.com/SushanthKS06/IsoLog/internal/chain"
	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/store"
)

// Service is the concrete API implementation cmd/isologd assembles from
// its already-open store, chain, and bus instances. It exists so the
// outer layer has exactly one thing to depend on (the API interface)
// rather than four internal packages' concrete types.
type Service struct {
	Store    *store.Store
	Chain    *chain.Store
	Bus      *bus.Bus
	SourceID string
}

func (s *Service) QueryEvents(f store.EventFilter) (store.Page, error) { return s.Store.QueryEvents(f) }

func (s *Service) GetEvent(id string) (*model.Event, error) { return s.Store.GetEvent(id) }

func (s *Service) QueryAlerts(f store.DetectionFilter) (AlertPage, error) {
	dets, err := s.Store.QueryDetections(f)
	if err != nil {
		return AlertPage{}, err
	}
	return AlertPage{Detections: dets}, nil
}

func (s *Service) Acknowledge(id, by string) (*model.Detection, error) {
	return s.Store.UpdateDetectionStatus(id, model.StatusAcknowledged, by)
}

func (s *Service) UpdateStatus(id string, to model.Status, by string) (*model.Detection, error) {
	return s.Store.UpdateDetectionStatus(id, to, by)
}

func (s *Service) CountsBySeverity(since time.Time) (SeverityCounts, error) {
	counts, err := s.Store.CountsBySeverity(since)
	if err != nil {
		return nil, err
	}
	return SeverityCounts(counts), nil
}

func (s *Service) MitreStats(since, until time.Time) (MitreStatsResult, error) {
	stats, err := s.Store.MitreStats(since, until)
	if err != nil {
		return MitreStatsResult{}, err
	}
	out := MitreStatsResult{Tactics: map[string]int{}, Techniques: map[string]int{}}
	for _, st := range stats {
		if st.Tactic != "" {
			out.Tactics[st.Tactic] += st.Count
		}
		if st.Technique != "" {
			out.Techniques[st.Technique] += st.Count
		}
	}
	return out, nil
}

func (s *Service) Timeline(since, until time.Time, bucket time.Duration, byDetection bool) ([]TimelineEntry, error) {
	buckets, err := s.Store.Timeline(since, until, bucket, byDetection)
	if err != nil {
		return nil, err
	}
	out := make([]TimelineEntry, len(buckets))
	for i, b := range buckets {
		out[i] = TimelineEntry{Start: b.Start, Count: b.Count}
	}
	return out, nil
}

func (s *Service) VerifyChain() (chain.VerifyResult, error) {
	blocks, err := s.Chain.All()
	if err != nil {
		return chain.VerifyResult{}, err
	}
	return chain.VerifyChain(blocks), nil
}

// IntegrityReport checks both halves of §4.7's tamper detection: block-
// to-block previous_hash continuity (chain.VerifyChain) and, for every
// block, that its covered events still hash to the merkle_root/
// block_hash recorded at commit time (chain.VerifyBatch against
// Store.EventsForBatch) — so mutating a single already-covered event
// in storage is caught even though it never touches previous_hash
// continuity between blocks.
func (s *Service) IntegrityReport(now time.Time) (IntegrityReport, error) {
	blocks, err := s.Chain.All()
	if err != nil {
		return IntegrityReport{}, err
	}
	vr := chain.VerifyChain(blocks)

	var totalEvents int
	var errs []string
	compromised := !vr.Valid
	if !vr.Valid {
		errs = append(errs, vr.Reason)
	}

	for _, b := range blocks {
		totalEvents += b.EventCount
		events, err := s.Store.EventsForBatch(b.ID)
		if err != nil {
			return IntegrityReport{}, err
		}
		bvr, err := chain.VerifyBatch(events, b.BlockHash, b.MerkleRoot, b.PreviousHash)
		if err != nil {
			return IntegrityReport{}, err
		}
		if !bvr.Valid {
			compromised = true
			errs = append(errs, fmt.Sprintf("block %d: %s", b.ID, bvr.Reason))
		}
	}

	status := "ok"
	if compromised {
		status = "compromised"
	}

	return IntegrityReport{
		Timestamp:      now,
		ChainValid:     !compromised,
		BlocksVerified: vr.BlocksVerified,
		Errors:         errs,
		Statistics: map[string]int{
			"blocks": len(blocks),
			"events": totalEvents,
		},
		Status: status,
	}, nil
}

func (s *Service) ExportChain() ([]*model.HashBlock, error) { return s.Chain.All() }

func (s *Service) ExportSync(events []*model.Event, blocks []*model.HashBlock, sourceID string, now time.Time) ([]byte, error) {
	if sourceID == "" {
		sourceID = s.SourceID
	}
	return chain.ExportPackage(sourceID, events, blocks, now)
}

func (s *Service) ImportSync(pkg []byte, verifyBlockchain bool) ([]*model.Event, []*model.HashBlock, chain.ImportResult, error) {
	return chain.ImportPackage(pkg, verifyBlockchain)
}

func (s *Service) Subscribe(ch bus.Channel, buffer int) *bus.Subscription {
	return s.Bus.Subscribe(ch, buffer)
}

var _ API = (*Service)(nil)
