// Package core contains the core domain types for tradedebate.
package core

import "fmt"

// Stage is a phase of the debate protocol.
type Stage string

const (
	StageOpening       Stage = "opening"
	StageRebuttal      Stage = "rebuttal"
	StageCounter       Stage = "counter"
	StageFinalArgument Stage = "final_argument"
	StageVerdict       Stage = "verdict"
)

// Speaker identifies who authored a message or whose turn is active.
// The judge only ever authors the verdict; it never holds the turn.
type Speaker string

const (
	SpeakerBuy   Speaker = "buy"
	SpeakerSell  Speaker = "sell"
	SpeakerJudge Speaker = "judge"
)

// Opponent returns the opposing debater. The judge has no opponent.
func (s Speaker) Opponent() Speaker {
	switch s {
	case SpeakerBuy:
		return SpeakerSell
	case SpeakerSell:
		return SpeakerBuy
	default:
		return ""
	}
}

// NodeName names a node in the debate workflow graph.
type NodeName string

const (
	NodeBuy       NodeName = "buy_debater"
	NodeSell      NodeName = "sell_debater"
	NodeModerator NodeName = "debate_moderator"
	NodeJudge     NodeName = "judge"
	NodeEnd       NodeName = "end"
)

// Turn is the (stage, speaker) pair that drives routing.
type Turn struct {
	Stage   Stage
	Speaker Speaker
}

func (t Turn) String() string {
	return fmt.Sprintf("stage=%s, speaker=%s", t.Stage, t.Speaker)
}

// Message is a single entry in the debate transcript. Messages are
// values: once appended they are never modified or removed.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Content string  `json:"content"`
	Stage   Stage   `json:"stage"`
}

// Positions maps each debater to the stance it argues.
type Positions map[Speaker]string

// DefaultPositions returns the fixed two-entry stance mapping.
func DefaultPositions() Positions {
	return Positions{
		SpeakerBuy:  "In favor of buying",
		SpeakerSell: "In favor of selling",
	}
}

// State is the record threaded through every workflow transition.
type State struct {
	Topic     string    `json:"debate_topic"`
	Positions Positions `json:"positions,omitempty"`
	Messages  []Message `json:"messages"`
	Stage     Stage     `json:"stage"`
	Speaker   Speaker   `json:"speaker"`

	// TurnCount and MaxTurns are carried for callers; routing never reads them.
	TurnCount int `json:"turn_count"`
	MaxTurns  int `json:"max_turns,omitempty"`

	FinancialData   string `json:"financial_data,omitempty"`
	NewsData        string `json:"news_data,omitempty"`
	NetworkAnalysis string `json:"network_analysis,omitempty"`
	SupplyChainData string `json:"supply_chain_data,omitempty"`

	Verdict *Verdict `json:"judge_verdict,omitempty"`
}

// Turn returns the current (stage, speaker) pair.
func (s *State) Turn() Turn {
	return Turn{Stage: s.Stage, Speaker: s.Speaker}
}

// ApplyDefaults fills stage, speaker, messages and positions when absent.
func (s *State) ApplyDefaults() {
	if s.Stage == "" {
		s.Stage = StageOpening
	}
	if s.Speaker == "" {
		s.Speaker = SpeakerBuy
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.Positions == nil {
		s.Positions = DefaultPositions()
	}
}

// Clone returns a copy that shares no mutable memory with s.
func (s *State) Clone() *State {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	if s.Positions != nil {
		c.Positions = make(Positions, len(s.Positions))
		for k, v := range s.Positions {
			c.Positions[k] = v
		}
	}
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	return &c
}

// LastMessage returns the most recent message, if any.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Patch is a partial state update returned by a node. Nil fields are
// left untouched when merged.
type Patch struct {
	Messages []Message
	Stage    *Stage
	Speaker  *Speaker
	Verdict  *Verdict
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Messages == nil && p.Stage == nil && p.Speaker == nil && p.Verdict == nil
}

// Apply merges a patch into the state. The transcript may only grow, and
// every existing entry must be carried over unchanged.
func (s *State) Apply(p Patch) error {
	if p.Messages != nil {
		if len(p.Messages) < len(s.Messages) {
			return fmt.Errorf("patch would drop messages: have %d, got %d", len(s.Messages), len(p.Messages))
		}
		for i := range s.Messages {
			if p.Messages[i] != s.Messages[i] {
				return fmt.Errorf("patch rewrites message %d", i)
			}
		}
		s.Messages = p.Messages
	}
	if p.Stage != nil {
		s.Stage = *p.Stage
	}
	if p.Speaker != nil {
		s.Speaker = *p.Speaker
	}
	if p.Verdict != nil {
		v := *p.Verdict
		s.Verdict = &v
	}
	return nil
}

// AppendMessage returns a new transcript with m appended. The input slice
// is never written to, so earlier snapshots stay valid.
func AppendMessage(messages []Message, m Message) []Message {
	out := make([]Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, m)
}
