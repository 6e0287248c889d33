package reward

import (
	"github.com/matheus3301/plated/internal/model"
	"go.uber.org/zap"
)

// Skill track progression.
const (
	TrackCompletionThreshold = 5
	TrackCompletionCoins     = 50

	BonusTrack         = "skill_track"
	BonusTrackProgress = "skill_track_progress"
)

// TrackBadgeID names the progress badge that mirrors a skill track. It is
// also the event id of the track's completion bonus.
func TrackBadgeID(trackID string) string { return "track:" + trackID }

// TrackResult is the outcome of counting one recipe toward a skill track.
type TrackResult struct {
	TrackID   string
	Progress  int
	Completed bool
	Paid      bool
}

// AdvanceTrack counts the recipe finished in sessionID toward trackID. Each
// session counts at most once per track. The call that brings the track to
// TrackCompletionThreshold earns its badge and pays TrackCompletionCoins,
// once for the lifetime of the profile.
func (e *Engine) AdvanceTrack(trackID, name, sessionID string) (TrackResult, error) {
	id := TrackBadgeID(trackID)
	res := TrackResult{TrackID: trackID}
	e.TrackBadge(model.Badge{ID: id, Name: name, Category: "skill_track", Total: TrackCompletionThreshold})

	counted, err := e.ApplyBonus(Bonus{
		EventID:   sessionID + ":" + id,
		Kind:      BonusTrackProgress,
		SessionID: sessionID,
	})
	if err != nil {
		return res, err
	}
	if counted {
		res.Completed = e.AdvanceBadge(id, 1)
	}
	res.Progress = e.badgeProgress(id)
	if !res.Completed {
		return res, nil
	}

	res.Paid, err = e.ApplyBonus(Bonus{EventID: id, Kind: BonusTrack, SessionID: sessionID, Coins: TrackCompletionCoins})
	if err != nil {
		return res, err
	}
	e.logger.Info("skill track completed", zap.String("track_id", trackID), zap.Bool("paid", res.Paid))
	return res, nil
}

func (e *Engine) badgeProgress(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.badgeIndex(id); i >= 0 {
		return e.summary.Badges[i].Progress
	}
	return 0
}
