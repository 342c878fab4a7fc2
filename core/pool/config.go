package pool

// Points defines the fixed scoring amounts the ledger is fed with.
type Points struct {
	// Completion is the positive delta appended per completed request.
	Completion int `json:"completion"`
	// ReleasePenalty is the magnitude of the negative delta appended when
	// an operator releases a taken request back to the pool.
	ReleasePenalty int `json:"release_penalty"`
}

// SetDefaults applies the standard point values.
func (p *Points) SetDefaults() {
	if p.Completion <= 0 {
		p.Completion = 10
	}
	if p.ReleasePenalty <= 0 {
		p.ReleasePenalty = 5
	}
}
