package compactor

// Summary aggregates a set of compacted matches
type Summary struct {
	Matches          int
	Wins             int
	AvgGoldPerMinute float64
	AvgCSPerMinute   float64
	AvgVisionScore   float64
	TopChampion      string
}

// WinRate returns wins/matches as a percentage
func (s Summary) WinRate() float64 {
	if s.Matches == 0 {
		return 0
	}
	return Round2(float64(s.Wins) * 100 / float64(s.Matches))
}

// Summarize computes averages over matches. Ties for the most played
// champion go to whichever reached that count first.
func Summarize(matches []CompactedMatch) Summary {
	s := Summary{Matches: len(matches)}
	if len(matches) == 0 {
		return s
	}

	var gold, cs, vision float64
	played := make(map[string]int)
	best := 0
	for _, m := range matches {
		if m.Win {
			s.Wins++
		}
		gold += m.GoldPerMinute
		cs += m.CSPerMinute
		vision += float64(m.VisionScore)

		played[m.ChampionName]++
		if played[m.ChampionName] > best {
			best = played[m.ChampionName]
			s.TopChampion = m.ChampionName
		}
	}

	n := float64(len(matches))
	s.AvgGoldPerMinute = Round2(gold / n)
	s.AvgCSPerMinute = Round2(cs / n)
	s.AvgVisionScore = Round2(vision / n)
	return s
}
