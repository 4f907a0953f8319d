package model

// MatchCandidate is one resident considered by the matcher, with its score.
// Kept for every match run so reviewers can see the closest candidates even
// when no match was chosen.
type MatchCandidate struct {
	ResidentID string  `json:"resident_id"`
	FullName   string  `json:"full_name"`
	Method     string  `json:"method"`
	Score      float64 `json:"score"`
}

// MatchResult is the outcome of running the resident matcher against one
// transaction description. ResidentID is empty when Confidence is none.
type MatchResult struct {
	ResidentID string
	Confidence MatchConfidence
	Method     MatchMethod
	Candidates []MatchCandidate
}
