package vault

import (
	"fmt"
	"strings"
)

type Strategy int

const (
	// StrategyMerge resolves each record independently by last-write-wins.
	StrategyMerge Strategy = iota
	// StrategyLocalWins discards the remote side.
	StrategyLocalWins
	// StrategyRemoteWins discards the local side.
	StrategyRemoteWins
)

func (s Strategy) String() string {
	switch s {
	case StrategyMerge:
		return "merge"
	case StrategyLocalWins:
		return "local-wins"
	case StrategyRemoteWins:
		return "remote-wins"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "merge":
		return StrategyMerge, nil
	case "local", "local-wins":
		return StrategyLocalWins, nil
	case "remote", "remote-wins":
		return StrategyRemoteWins, nil
	default:
		return StrategyMerge, fmt.Errorf("unknown merge strategy %q", s)
	}
}

// MergeResult is the merged store plus a report of the records both sides
// disagreed on. The report is informational only.
type MergeResult struct {
	Store             *RecordStore
	ConflictsResolved int
	// Winners maps each conflicting id to the device whose version was kept.
	Winners map[string]string
}

// Merge combines two replicas of the same vault. It never fails.
//
// With StrategyMerge every id from either side survives; ids on both sides
// keep whichever version is Newer, which makes the operation commutative,
// idempotent and associative. The result's Version is the greater of the
// two inputs.
func Merge(local, remote *RecordStore, strategy Strategy) *MergeResult {
	res := &MergeResult{Winners: make(map[string]string)}

	switch strategy {
	case StrategyLocalWins:
		res.Store = local.Clone()
	case StrategyRemoteWins:
		res.Store = remote.Clone()
	default:
		res.Store = NewRecordStore(local.VaultID)
		for id, r := range local.records {
			res.Store.records[id] = r.clone()
		}
		for _, r := range remote.records {
			// ids taken from a store are never empty
			_, _ = res.Store.Apply(r)
		}
	}

	if res.Store.VaultID == "" {
		res.Store.VaultID = remote.VaultID
	}
	res.Store.Version = max(local.Version, remote.Version)

	for id, l := range local.records {
		r, ok := remote.records[id]
		if !ok || !l.differs(r) {
			continue
		}
		res.ConflictsResolved++
		res.Winners[id] = res.Store.records[id].DeviceID
	}

	return res
}
