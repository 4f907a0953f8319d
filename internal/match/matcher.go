// Package match implements the resident matching engine for bank
// transaction descriptions. The matcher is a pure function over a resident
// directory snapshot: no I/O, deterministic for identical inputs.
package match

import (
	"regexp"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/residio-ng/residio/internal/model"
)

// Config holds the tunable fuzzy-match thresholds. Real-world tuning is
// expected, so these come from configuration rather than constants.
type Config struct {
	// MinScore is the floor below which a fuzzy candidate is rejected.
	MinScore float64
	// MediumScore separates medium confidence from low.
	MediumScore float64
}

// DefaultConfig returns the default matching thresholds.
func DefaultConfig() Config {
	return Config{
		MinScore:    0.60,
		MediumScore: 0.75,
	}
}

// Matcher scores transaction descriptions against a resident directory.
type Matcher struct {
	aliases      map[string]string
	byAccount    map[string]string
	names        map[string]string
	aliasPhrases []phraseEntry
	namePhrases  []phraseEntry
	residents    []model.Resident
	cfg          Config
}

// phraseEntry is one normalized phrase with its resident, held in a fixed
// scan order so containment lookups stay deterministic.
type phraseEntry struct {
	phrase string
	id     string
}

var nubanPattern = regexp.MustCompile(`\b(\d{10})\b`)

// New builds a matcher over a directory snapshot. The snapshot is not
// mutated and may be shared across calls.
func New(residents []model.Resident, cfg Config) *Matcher {
	if cfg.MinScore <= 0 {
		cfg = DefaultConfig()
	}
	m := &Matcher{
		residents: residents,
		aliases:   make(map[string]string),
		byAccount: make(map[string]string),
		names:     make(map[string]string),
		cfg:       cfg,
	}
	for _, r := range residents {
		m.names[normalize(r.FullName)] = r.ID
		if r.AccountNumber != "" {
			m.byAccount[r.AccountNumber] = r.ID
		}
		for _, alias := range r.Aliases {
			if n := normalize(alias); n != "" {
				m.aliases[n] = r.ID
			}
		}
	}
	m.aliasPhrases = orderedPhrases(m.aliases)
	m.namePhrases = orderedPhrases(m.names)
	return m
}

// orderedPhrases flattens a phrase table into a fixed scan order: longest
// phrase first so the most specific name wins, then phrase, then resident
// ID. Map iteration order must never decide which resident a narration
// containing two known names matches.
func orderedPhrases(table map[string]string) []phraseEntry {
	entries := make([]phraseEntry, 0, len(table))
	for phrase, id := range table {
		entries = append(entries, phraseEntry{phrase: phrase, id: id})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].phrase) != len(entries[j].phrase) {
			return len(entries[i].phrase) > len(entries[j].phrase)
		}
		if entries[i].phrase != entries[j].phrase {
			return entries[i].phrase < entries[j].phrase
		}
		return entries[i].id < entries[j].id
	})
	return entries
}

// Match scores the candidate text against the directory. Strategy priority
// decides ties, not raw score: alias, then exact name, then fuzzy name,
// then account number. Candidates are always populated so reviewers can see
// the closest residents even when nothing was chosen.
func (m *Matcher) Match(text string, amountMinor int64) model.MatchResult {
	_ = amountMinor // reserved for amount-aware strategies
	normalized := normalize(text)

	candidates := m.fuzzyCandidates(normalized)

	if id, ok := m.lookupPhrase(m.aliases, m.aliasPhrases, normalized); ok {
		return result(id, model.ConfidenceHigh, model.MethodAlias, m.prepend(candidates, id, model.MethodAlias))
	}

	if id, ok := m.lookupPhrase(m.names, m.namePhrases, normalized); ok {
		return result(id, model.ConfidenceHigh, model.MethodExactName, m.prepend(candidates, id, model.MethodExactName))
	}

	if len(candidates) > 0 && candidates[0].Score >= m.cfg.MinScore {
		confidence := model.ConfidenceLow
		if candidates[0].Score >= m.cfg.MediumScore {
			confidence = model.ConfidenceMedium
		}
		return result(candidates[0].ResidentID, confidence, model.MethodFuzzyName, candidates)
	}

	for _, account := range nubanPattern.FindAllString(text, -1) {
		if id, ok := m.byAccount[account]; ok {
			return result(id, model.ConfidenceHigh, model.MethodAccountNumber, m.prepend(candidates, id, model.MethodAccountNumber))
		}
	}

	return model.MatchResult{
		Confidence: model.ConfidenceNone,
		Method:     model.MethodNone,
		Candidates: candidates,
	}
}

// result assembles the outcome for a chosen resident.
func result(id string, confidence model.MatchConfidence, method model.MatchMethod, candidates []model.MatchCandidate) model.MatchResult {
	return model.MatchResult{
		ResidentID: id,
		Confidence: confidence,
		Method:     method,
		Candidates: candidates,
	}
}

// lookupPhrase checks the table for the whole normalized text and then
// scans the ordered phrases for a whole-word containment hit. Bank
// narrations often wrap the counterparty name in transfer boilerplate; when
// a narration contains two known names, the longest phrase wins.
func (m *Matcher) lookupPhrase(table map[string]string, phrases []phraseEntry, normalized string) (string, bool) {
	if id, ok := table[normalized]; ok {
		return id, true
	}
	padded := " " + normalized + " "
	for _, entry := range phrases {
		if entry.phrase != "" && strings.Contains(padded, " "+entry.phrase+" ") {
			return entry.id, true
		}
	}
	return "", false
}

// fuzzyCandidates scores every resident name against the text and returns
// the ranked list. Order is deterministic: score descending, resident ID
// ascending on ties.
func (m *Matcher) fuzzyCandidates(normalized string) []model.MatchCandidate {
	if normalized == "" {
		return nil
	}

	candidates := make([]model.MatchCandidate, 0, len(m.residents))
	for _, r := range m.residents {
		score := similarity(normalized, normalize(r.FullName))
		if score <= 0 {
			continue
		}
		candidates = append(candidates, model.MatchCandidate{
			ResidentID: r.ID,
			FullName:   r.FullName,
			Score:      score,
			Method:     string(model.MethodFuzzyName),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ResidentID < candidates[j].ResidentID
	})

	return candidates
}

// prepend puts the chosen non-fuzzy hit at the head of the candidate list
// with a full score, keeping the fuzzy ranking behind it for audit display.
func (m *Matcher) prepend(candidates []model.MatchCandidate, residentID string, method model.MatchMethod) []model.MatchCandidate {
	name := ""
	for _, r := range m.residents {
		if r.ID == residentID {
			name = r.FullName
			break
		}
	}
	head := model.MatchCandidate{
		ResidentID: residentID,
		FullName:   name,
		Score:      1.0,
		Method:     string(method),
	}
	out := make([]model.MatchCandidate, 0, len(candidates)+1)
	out = append(out, head)
	for _, c := range candidates {
		if c.ResidentID != residentID {
			out = append(out, c)
		}
	}
	return out
}

// similarity blends token-set overlap with edit distance. Token overlap
// handles reordered names ("SMITH JOHN A" vs "John A Smith"); Levenshtein
// handles misspellings.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	tokenScore := tokenOverlap(strings.Fields(a), strings.Fields(b))
	editScore := levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)

	if tokenScore > editScore {
		return tokenScore
	}
	return editScore
}

// tokenOverlap returns the Dice coefficient of the two token sets.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	shared := 0
	for t := range setA {
		if setB[t] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(setA)+len(setB))
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)

// normalize lowercases, strips punctuation, and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
