package deepresearch

// Finalize normalizes a terminal state. A missing termination becomes
// no_answer, and any termination other than answer clears the prediction.
// Evidence, counters and metadata pass through. Finalize(Finalize(s)) equals
// Finalize(s).
func Finalize(s State) State {
	return Merge(s, finalizeDelta(s))
}

func finalizeDelta(s State) Delta {
	termination := s.Termination
	if termination == "" {
		termination = TerminationNoAnswer
	}
	prediction := s.Prediction
	if termination != TerminationAnswer {
		prediction = ""
	}
	return Delta{
		Termination:  Assign(termination),
		Prediction:   Assign(prediction),
		ToolResponse: Clear[string](),
	}
}
