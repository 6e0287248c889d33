package reward

import (
	"math/rand/v2"
	"sync"

	"github.com/matheus3301/plated/internal/model"
)

// Verdict is a verification outcome for a proof of cook.
type Verdict struct {
	Status model.VerificationStatus
	Score  float64
}

// Verifier decides whether a proof of cook is verified.
type Verifier interface {
	Verify(proof model.Proof) Verdict
}

// SeededVerifier accepts a fixed share of proofs using an injected random
// source. It stands in for a real verification model.
type SeededVerifier struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
}

// NewSeededVerifier returns a verifier that accepts successRate of proofs,
// reproducibly for a given seed.
func NewSeededVerifier(seed uint64, successRate float64) *SeededVerifier {
	return &SeededVerifier{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), successRate: successRate}
}

// Verify returns verified with a score in [0.75, 0.98), or rejected with a
// score in [0.2, 0.5).
func (v *SeededVerifier) Verify(model.Proof) Verdict {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.rng.Float64() < v.successRate {
		return Verdict{Status: model.VerificationVerified, Score: 0.75 + v.rng.Float64()*0.23}
	}
	return Verdict{Status: model.VerificationRejected, Score: 0.2 + v.rng.Float64()*0.3}
}

// ScoreVerifier judges the score the backend attached to a proof.
type ScoreVerifier struct {
	Threshold float64
}

// Verify returns pending while the proof has no score.
func (v ScoreVerifier) Verify(p model.Proof) Verdict {
	if p.VerificationScore == nil {
		return Verdict{Status: model.VerificationPending}
	}
	score := *p.VerificationScore
	if score >= v.Threshold {
		return Verdict{Status: model.VerificationVerified, Score: score}
	}
	return Verdict{Status: model.VerificationRejected, Score: score}
}
