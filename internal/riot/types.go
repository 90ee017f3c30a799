package riot

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Identity is a resolved player. It does not change for the rest of a run.
type Identity struct {
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
	PUUID    string `json:"puuid"`
}

// RiotID returns the display form Name#TAG
func (i Identity) RiotID() string {
	return i.GameName + "#" + i.TagLine
}

// Match represents the response from /lol/match/v5/matches/{matchId}
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation int64         `json:"gameCreation"`
	GameDuration int           `json:"gameDuration"` // seconds
	GameVersion  string        `json:"gameVersion"`
	QueueID      int           `json:"queueId"`
	Participants []Participant `json:"participants"`
}

// Participant is one player's record within a match
type Participant struct {
	PUUID          string `json:"puuid"`
	RiotIdGameName string `json:"riotIdGameName"`
	RiotIdTagline  string `json:"riotIdTagline"`
	ChampionID     int    `json:"championId"`
	ChampionName   string `json:"championName"`
	Lane           string `json:"lane"`
	Role           string `json:"role"`
	TeamPosition   string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win            bool   `json:"win"`

	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`

	GoldEarned           int `json:"goldEarned"`
	TotalMinionsKilled   int `json:"totalMinionsKilled"`
	NeutralMinionsKilled int `json:"neutralMinionsKilled"`
	VisionScore          int `json:"visionScore"`

	TotalDamageDealtToChampions int  `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            int  `json:"totalDamageTaken"`
	LargestMultiKill            int  `json:"largestMultiKill"`
	FirstBloodKill              bool `json:"firstBloodKill"`
	DamageDealtToTurrets        int  `json:"damageDealtToTurrets"`
	TurretKills                 int  `json:"turretKills"`
	WardsPlaced                 int  `json:"wardsPlaced"`
	WardsKilled                 int  `json:"wardsKilled"`
	VisionWardsBoughtInGame     int  `json:"visionWardsBoughtInGame"`

	Item0 int `json:"item0"`
	Item1 int `json:"item1"`
	Item2 int `json:"item2"`
	Item3 int `json:"item3"`
	Item4 int `json:"item4"`
	Item5 int `json:"item5"`
	Item6 int `json:"item6"` // Trinket

	// Missing in older matches and some game modes
	Challenges *Challenges `json:"challenges,omitempty"`
}

// Challenges is the subset of the detailed-stats block we read
type Challenges struct {
	SkillshotsHit             int `json:"skillshotsHit"`
	SoloKills                 int `json:"soloKills"`
	LaneMinionsFirst10Minutes int `json:"laneMinionsFirst10Minutes"`
	DragonTakedowns           int `json:"dragonTakedowns"`
}

// Items returns the seven item slots in order, zero meaning empty
func (p *Participant) Items() [7]int {
	return [7]int{p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5, p.Item6}
}

// FindParticipant returns the participant with the given PUUID
func (m *Match) FindParticipant(puuid string) (*Participant, bool) {
	for i := range m.Info.Participants {
		if m.Info.Participants[i].PUUID == puuid {
			return &m.Info.Participants[i], true
		}
	}
	return nil, false
}
