package simulate

import "fmt"

// VerifyRankings checks that a full ranking lists every entity once,
// ordered by rating descending then id ascending, with dense ranks.
func VerifyRankings(rankings []RankedEntity) error {
	if len(rankings) == 0 {
		return fmt.Errorf("%w: empty ranking", ErrVerification)
	}
	seen := make(map[int64]struct{}, len(rankings))
	for i, r := range rankings {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: entity %d listed twice", ErrVerification, r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.Rank != i+1 {
			return fmt.Errorf("%w: position %d has rank %d", ErrVerification, i+1, r.Rank)
		}
		if i == 0 {
			continue
		}
		prev := rankings[i-1]
		if r.Rating > prev.Rating {
			return fmt.Errorf("%w: rank %d rated %d above rank %d rated %d",
				ErrVerification, r.Rank, r.Rating, prev.Rank, prev.Rating)
		}
		if r.Rating == prev.Rating && r.ID < prev.ID {
			return fmt.Errorf("%w: tie at %d not ordered by id (%d before %d)",
				ErrVerification, r.Rating, prev.ID, r.ID)
		}
	}
	return nil
}

// VerifyStats checks the aggregate counters against the ranking and the
// votes this run saw accepted.
func VerifyStats(s ServerStats, entities, accepted int) error {
	if s.TotalEntities != entities {
		return fmt.Errorf("%w: stats report %d entities, ranking has %d", ErrVerification, s.TotalEntities, entities)
	}
	if s.TotalVotes < accepted {
		return fmt.Errorf("%w: stats report %d votes, %d were accepted", ErrVerification, s.TotalVotes, accepted)
	}
	return nil
}
