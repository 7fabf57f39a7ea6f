package model

// Patch is a partial update a graph node returns instead of mutating shared
// state directly. The Graph Engine merges patches at the barrier using two
// rules: list fields append, everything else replaces (last-writer-wins).
// This mirrors the "Send many" primitive's accumulation semantics described
// in spec.md §9 without sharing mutable state across concurrent branches.
type Patch struct {
	AppendAgentResults    []AgentResult
	AppendDebateExchanges []DebateExchange

	Phase              *Phase
	CurrentDebateRound *int
	CurrentDebateType  *DebateType
	SynthesizedReport  *string
	ReportHTMLURL      *string
	EvidencePack       *EvidencePack
	MemorySnapshot     *MemorySnapshot
	ErrorMessage       *string
}

// Apply merges a patch into state, appending list fields and replacing
// scalar fields that are non-nil in the patch. Apply never mutates p's
// slices into the receiver by reference beyond appending their elements.
func (s *WorkflowState) Apply(p Patch) {
	if len(p.AppendAgentResults) > 0 {
		s.AgentResults = append(s.AgentResults, p.AppendAgentResults...)
	}
	if len(p.AppendDebateExchanges) > 0 {
		s.DebateExchanges = append(s.DebateExchanges, p.AppendDebateExchanges...)
	}
	if p.Phase != nil {
		s.Phase = *p.Phase
	}
	if p.CurrentDebateRound != nil {
		s.CurrentDebateRound = *p.CurrentDebateRound
	}
	if p.CurrentDebateType != nil {
		s.CurrentDebateType = *p.CurrentDebateType
	}
	if p.SynthesizedReport != nil {
		s.SynthesizedReport = *p.SynthesizedReport
	}
	if p.ReportHTMLURL != nil {
		s.ReportHTMLURL = *p.ReportHTMLURL
	}
	if p.EvidencePack != nil {
		s.EvidencePack = p.EvidencePack
	}
	if p.MemorySnapshot != nil {
		s.MemorySnapshot = p.MemorySnapshot
	}
	if p.ErrorMessage != nil {
		s.ErrorMessage = *p.ErrorMessage
	}
}

// Clone returns an immutable-from-the-caller's-perspective copy of state,
// suitable for handing to a fan-out branch: the branch gets its own slice
// headers so appends inside the branch never race the original.
func (s WorkflowState) Clone() WorkflowState {
	clone := s
	clone.AgentResults = append([]AgentResult(nil), s.AgentResults...)
	clone.DebateExchanges = append([]DebateExchange(nil), s.DebateExchanges...)
	return clone
}
