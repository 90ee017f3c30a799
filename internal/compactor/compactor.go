// Package compactor reduces full match payloads to the small per-player
// statistics record that gets sent to the coaching model.
package compactor

import (
	"fmt"
	"math"

	"flashcoach/internal/riot"

	"go.uber.org/zap"
)

// CompactedMatch is one player's condensed view of a single match
type CompactedMatch struct {
	MatchID       string  `json:"matchId"`
	ChampionName  string  `json:"championName"`
	Win           bool    `json:"win"`
	KDA           string  `json:"kda"` // "K/D/A"
	GoldPerMinute float64 `json:"goldPerMinute"`
	CSPerMinute   float64 `json:"csPerMinute"`
	VisionScore   int     `json:"visionScore"`
	SkillshotsHit int     `json:"skillshotsHit"`
	ItemBuild     [7]int  `json:"itemBuild"` // 0 = empty slot
	Lane          string  `json:"lane"`
	Role          string  `json:"role"`
	GameDuration  float64 `json:"gameDuration"` // minutes

	Combat     CombatStats    `json:"combat"`
	Laning     LaningStats    `json:"laning"`
	Objectives ObjectiveStats `json:"objectives"`
	Vision     VisionStats    `json:"vision"`
}

type CombatStats struct {
	DamageDealt int `json:"damageDealt"`
	DamageTaken int `json:"damageTaken"`
	SoloKills   int `json:"soloKills"`
	MultiKills  int `json:"multiKills"` // largest multikill
}

type LaningStats struct {
	FirstBlood bool `json:"firstBlood"`
	CSAt10     int  `json:"csAt10"`
}

type ObjectiveStats struct {
	DamageToTurrets int `json:"damageToTurrets"`
	TurretKills     int `json:"turretKills"`
	DragonTakedowns int `json:"dragonTakedowns"`
}

type VisionStats struct {
	WardsPlaced        int `json:"wardsPlaced"`
	WardsKilled        int `json:"wardsKilled"`
	ControlWardsBought int `json:"controlWardsBought"`
}

// Compactor turns match payloads into CompactedMatch records
type Compactor struct {
	logger *zap.Logger
}

// New creates a Compactor. A nil logger discards warnings.
func New(logger *zap.Logger) *Compactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compactor{logger: logger}
}

// Compact extracts puuid's record from match. It returns false when the
// player did not take part, and has no other failure mode.
func (c *Compactor) Compact(match *riot.Match, puuid string) (*CompactedMatch, bool) {
	if match == nil {
		return nil, false
	}

	p, ok := match.FindParticipant(puuid)
	if !ok {
		c.logger.Warn("player not found in match",
			zap.String("puuid", puuid),
			zap.String("matchId", match.Metadata.MatchID))
		return nil, false
	}

	durationMinutes := float64(match.Info.GameDuration) / 60

	var challenges riot.Challenges
	if p.Challenges != nil {
		challenges = *p.Challenges
	}

	return &CompactedMatch{
		MatchID:       match.Metadata.MatchID,
		ChampionName:  p.ChampionName,
		Win:           p.Win,
		KDA:           fmt.Sprintf("%d/%d/%d", p.Kills, p.Deaths, p.Assists),
		GoldPerMinute: perMinute(p.GoldEarned, durationMinutes),
		CSPerMinute:   perMinute(p.TotalMinionsKilled+p.NeutralMinionsKilled, durationMinutes),
		VisionScore:   p.VisionScore,
		SkillshotsHit: challenges.SkillshotsHit,
		ItemBuild:     p.Items(),
		Lane:          p.Lane,
		Role:          p.Role,
		GameDuration:  Round2(durationMinutes),
		Combat: CombatStats{
			DamageDealt: p.TotalDamageDealtToChampions,
			DamageTaken: p.TotalDamageTaken,
			SoloKills:   challenges.SoloKills,
			MultiKills:  p.LargestMultiKill,
		},
		Laning: LaningStats{
			FirstBlood: p.FirstBloodKill,
			CSAt10:     challenges.LaneMinionsFirst10Minutes,
		},
		Objectives: ObjectiveStats{
			DamageToTurrets: p.DamageDealtToTurrets,
			TurretKills:     p.TurretKills,
			DragonTakedowns: challenges.DragonTakedowns,
		},
		Vision: VisionStats{
			WardsPlaced:        p.WardsPlaced,
			WardsKilled:        p.WardsKilled,
			ControlWardsBought: p.VisionWardsBoughtInGame,
		},
	}, true
}

func perMinute(total int, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return Round2(float64(total) / minutes)
}

// Round2 rounds half away from zero to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
