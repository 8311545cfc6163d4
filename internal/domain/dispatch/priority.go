package dispatch

// Loaded vehicles outrank empty ones by a margin no task age can close;
// within the same cargo class, older tasks win.
const (
	carryingWeight = 1_000_000_000
	taskSeqCeiling = 999_999
)

// Contender is the slice of vehicle state that priority is computed from
type Contender struct {
	VehicleID string
	Carrying  bool
	TaskSeq   int64
}

// PriorityOf computes the absolute priority score for one contender
func PriorityOf(c Contender) int64 {
	score := int64(0)
	if c.Carrying {
		score += carryingWeight
	}
	age := taskSeqCeiling - c.TaskSeq
	if age < 0 {
		age = 0
	}
	return score + age
}

// Verdict is the outcome of a two-vehicle priority comparison
type Verdict struct {
	Winner   string `json:"winner"`
	Loser    string `json:"loser"`
	Diff     int64  `json:"diff"`
	Reason   string `json:"reason"`
	WinScore int64  `json:"winScore"`
}

// Compare ranks two contenders. Cargo dominates: a loaded vehicle always
// beats an empty one. Between equals, the older task wins; a full tie
// resolves by vehicle ID so repeated comparisons stay stable.
func Compare(a, b Contender) Verdict {
	pa := PriorityOf(a)
	pb := PriorityOf(b)

	winner, loser := a, b
	wp, lp := pa, pb
	if pb > pa || (pb == pa && b.VehicleID < a.VehicleID) {
		winner, loser = b, a
		wp, lp = pb, pa
	}

	reason := "task_age"
	switch {
	case winner.Carrying && !loser.Carrying:
		reason = "carrying"
	case wp == lp:
		reason = "tie_break"
	}

	return Verdict{
		Winner:   winner.VehicleID,
		Loser:    loser.VehicleID,
		Diff:     wp - lp,
		Reason:   reason,
		WinScore: wp,
	}
}
