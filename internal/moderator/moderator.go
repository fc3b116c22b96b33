// Package moderator holds the debate transition table.
package moderator

import "github.com/alienxp03/tradedebate/internal/core"

// Decision is the moderator's routing result.
type Decision struct {
	Next  core.NodeName
	Patch core.Patch
}

type transition struct {
	next    core.NodeName
	stage   core.Stage
	speaker core.Speaker
}

// table maps each valid turn to the next node and, when the turn changes
// hands, the new (stage, speaker). Any turn not listed is a defect.
var table = map[core.Turn]transition{
	{Stage: core.StageOpening, Speaker: core.SpeakerBuy}: {
		next:    core.NodeSell,
		stage:   core.StageRebuttal,
		speaker: core.SpeakerSell,
	},
	{Stage: core.StageRebuttal, Speaker: core.SpeakerSell}: {
		next: core.NodeJudge,
	},
}

// Moderate decides where control goes after a debater has spoken. It does
// not touch the transcript.
func Moderate(state *core.State) (Decision, error) {
	turn := state.Turn()
	tr, ok := table[turn]
	if !ok {
		return Decision{}, &core.UnexpectedStateError{Stage: turn.Stage, Speaker: turn.Speaker}
	}

	d := Decision{Next: tr.next}
	if tr.stage != "" {
		stage, speaker := tr.stage, tr.speaker
		d.Patch = core.Patch{Stage: &stage, Speaker: &speaker}
	}
	return d, nil
}

// ValidTurns returns every turn the moderator accepts.
func ValidTurns() []core.Turn {
	return []core.Turn{
		{Stage: core.StageOpening, Speaker: core.SpeakerBuy},
		{Stage: core.StageRebuttal, Speaker: core.SpeakerSell},
	}
}
