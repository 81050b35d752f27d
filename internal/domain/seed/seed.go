// Package seed holds the learned reproducibility state for a task signature:
// candidate seeds ranked by an exponential moving average of verifier scores.
package seed

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// Candidate is one seed with its learned success score.
// SuccessScore stays in [0,1]; Attempts is at least 1 once the candidate exists.
type Candidate struct {
	Seed         uint64    `json:"seed"`
	SuccessScore float64   `json:"success_score"`
	Attempts     int       `json:"attempts"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Record owns the ordered candidate set for one signature plus a cached
// best-candidate index. Only the retry/learning controller mutates a Record,
// and only while holding the per-signature store lock.
type Record struct {
	Signature  delegation.Signature `json:"signature"`
	Candidates []Candidate          `json:"candidates"`

	best int // index into Candidates, -1 when empty
}

// NewRecord returns an empty record for the signature.
func NewRecord(sig delegation.Signature) *Record {
	return &Record{Signature: sig, best: -1}
}

// Rebuild recomputes the cached best index. Stores call it after loading a
// record from persistence.
func (r *Record) Rebuild() {
	r.best = -1
	for i := range r.Candidates {
		if r.better(i, r.best) {
			r.best = i
		}
	}
}

// better reports whether candidate i outranks candidate j (j == -1 means no
// incumbent). Ties on score go to the candidate with fewer attempts, so an
// equally scored but less-tested seed gets re-validated.
func (r *Record) better(i, j int) bool {
	if j < 0 {
		return true
	}
	ci, cj := r.Candidates[i], r.Candidates[j]
	if ci.SuccessScore != cj.SuccessScore {
		return ci.SuccessScore > cj.SuccessScore
	}
	return ci.Attempts < cj.Attempts
}

// Best returns the current best candidate, if any.
func (r *Record) Best() (Candidate, bool) {
	if r.best < 0 || r.best >= len(r.Candidates) {
		return Candidate{}, false
	}
	return r.Candidates[r.best], true
}

// Len returns the number of candidates.
func (r *Record) Len() int { return len(r.Candidates) }

func (r *Record) find(seedValue uint64) int {
	for i := range r.Candidates {
		if r.Candidates[i].Seed == seedValue {
			return i
		}
	}
	return -1
}

const (
	// emaRetain and emaBlend implement new = old*0.7 + score*0.3.
	emaRetain = 0.7
	emaBlend  = 0.3
	// demoteFactor implements new = old*0.7 on a failed attempt.
	demoteFactor = 0.7
)

// Promote records a successful attempt for seedValue with the verifier score.
// A first-time candidate takes the score directly; an existing one moves by
// EMA. The best index is recomputed afterwards.
func (r *Record) Promote(seedValue uint64, score float64, now time.Time) {
	score = clamp01(score)
	if i := r.find(seedValue); i >= 0 {
		c := &r.Candidates[i]
		c.SuccessScore = clamp01(c.SuccessScore*emaRetain + score*emaBlend)
		c.Attempts++
		c.LastUpdated = now
	} else {
		r.Candidates = append(r.Candidates, Candidate{
			Seed:         seedValue,
			SuccessScore: score,
			Attempts:     1,
			LastUpdated:  now,
		})
	}
	r.Rebuild()
}

// Demote records a failed attempt for seedValue, decaying its score. A seed
// that fails before ever succeeding is still recorded (at score 0) so the
// same delegation does not re-explore it.
func (r *Record) Demote(seedValue uint64, now time.Time) {
	if i := r.find(seedValue); i >= 0 {
		c := &r.Candidates[i]
		c.SuccessScore = clamp01(c.SuccessScore * demoteFactor)
		c.Attempts++
		c.LastUpdated = now
	} else {
		r.Candidates = append(r.Candidates, Candidate{
			Seed:        seedValue,
			Attempts:    1,
			LastUpdated: now,
		})
	}
	r.Rebuild()
}

// NextExcluding returns the highest-scoring candidate whose seed is not in
// tried, or false when none remain.
func (r *Record) NextExcluding(tried map[uint64]bool) (Candidate, bool) {
	bestIdx := -1
	for i := range r.Candidates {
		if tried[r.Candidates[i].Seed] {
			continue
		}
		if bestIdx < 0 || r.better(i, bestIdx) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Candidate{}, false
	}
	return r.Candidates[bestIdx], true
}

// Clone returns a deep copy, used by stores to hand out working copies.
func (r *Record) Clone() *Record {
	return &Record{
		Signature:  r.Signature,
		Candidates: append([]Candidate(nil), r.Candidates...),
		best:       r.best,
	}
}

// Exploratory derives a deterministic exploration seed from the signature,
// the attempt index, and a configurable salt. Identical retries of the same
// process explore the same sequence; rotating the salt rotates the sequence.
func Exploratory(sig delegation.Signature, attempt int, salt string) uint64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", sig, attempt, salt)))
	return binary.BigEndian.Uint64(sum[:8])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
