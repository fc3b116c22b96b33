package core

import (
	"time"
)

// RunStatus represents the current status of a debate run.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Backends records which backend spec ("provider/model") plays each role.
type Backends struct {
	Buy   string `json:"buy"`
	Sell  string `json:"sell"`
	Judge string `json:"judge"`
}

// Run is a persisted debate run.
type Run struct {
	ID       string    `json:"id"`
	Topic    string    `json:"topic"`
	Ticker   string    `json:"ticker,omitempty"`
	Backends Backends  `json:"backends"`
	Status   RunStatus `json:"status"`

	Stage     Stage   `json:"stage"`
	Speaker   Speaker `json:"speaker"`
	TurnCount int     `json:"turn_count"`
	MaxTurns  int     `json:"max_turns"`

	FinancialData   string `json:"financial_data,omitempty"`
	NewsData        string `json:"news_data,omitempty"`
	NetworkAnalysis string `json:"network_analysis,omitempty"`
	SupplyChainData string `json:"supply_chain_data,omitempty"`

	Verdict *Verdict `json:"verdict,omitempty"`
	Error   string   `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// InitialState builds the workflow input for this run. Defaults are left
// for the workflow to apply.
func (r *Run) InitialState() *State {
	return &State{
		Topic:           r.Topic,
		TurnCount:       r.TurnCount,
		MaxTurns:        r.MaxTurns,
		FinancialData:   r.FinancialData,
		NewsData:        r.NewsData,
		NetworkAnalysis: r.NetworkAnalysis,
		SupplyChainData: r.SupplyChainData,
	}
}

// RunSummary is a lightweight representation for listing runs.
type RunSummary struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Ticker       string    `json:"ticker,omitempty"`
	Status       RunStatus `json:"status"`
	Winner       Winner    `json:"winner,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// StoredMessage is a transcript entry as persisted for a run.
type StoredMessage struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Speaker   Speaker   `json:"speaker"`
	Stage     Stage     `json:"stage"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Message returns the transcript value of a stored message.
func (m *StoredMessage) Message() Message {
	return Message{Speaker: m.Speaker, Stage: m.Stage, Content: m.Content}
}

// NewRunConfig holds configuration for creating a new run.
type NewRunConfig struct {
	Topic           string `json:"topic"`
	Ticker          string `json:"ticker,omitempty"`
	MaxTurns        int    `json:"max_turns,omitempty"`
	FinancialData   string `json:"financial_data,omitempty"`
	NewsData        string `json:"news_data,omitempty"`
	NetworkAnalysis string `json:"network_analysis,omitempty"`
	SupplyChainData string `json:"supply_chain_data,omitempty"`
	Buy             string `json:"buy,omitempty"`
	Sell            string `json:"sell,omitempty"`
	Judge           string `json:"judge,omitempty"`
}
