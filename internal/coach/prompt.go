package coach

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"flashcoach/internal/compactor"

	json "github.com/goccy/go-json"
)

// TrendChunkSize is how many matches each trend-analysis window covers
const TrendChunkSize = 10

// SystemPrompt sets the model's persona
const SystemPrompt = "You are an expert League of Legends coach. You give specific, data-backed advice and never invent statistics that are not in the data you are given."

// ItemNamer resolves item ids to display names
type ItemNamer interface {
	Name(id int) (string, bool)
}

var promptTemplate = template.Must(template.New("coaching").Parse(`I will provide you with data from the last {{.Count}} matches of a player.
The list is ordered from most recent (index 0) to oldest.

Here is the match data:
{{.MatchesJSON}}
{{- if .Items}}

Item ids used above:
{{- range .Items}}
- {{.ID}}: {{.Name}}
{{- end}}
{{- end}}

Based on this data, please provide the following:
1. **Playstyle Profile**: Analyze the player's mechanical performance and playstyle patterns (e.g., "Aggressive Lane Bully", "Passive Scaler", "Roamer").
2. **Champion Recommendations**: Group the champions they play by role, and for each role they play suggest 2 champions they should learn next that fit their proven skill level and playstyle. Explain why.
3. **Strengths & Weaknesses**: List their clearest strengths and weaknesses, citing the stats that show them (e.g. CS per minute, deaths, vision score, damage dealt).
4. **Trend Analysis**: Compare performance across these windows of {{.ChunkSize}} matches and say whether the player is improving, declining or flat:
{{- range .Chunks}}
   - {{.}}
{{- end}}
5. **Improvement Plan**: Give a short, prioritised plan of specific, actionable "educational" steps to improve their consistency based on the provided stats.

Format your response clearly with markdown headings.
`))

type itemLegend struct {
	ID   int
	Name string
}

type promptData struct {
	Count       int
	MatchesJSON string
	Items       []itemLegend
	ChunkSize   int
	Chunks      []string
}

// BuildPrompt renders the coaching prompt for matches (index 0 = most recent).
// items may be nil, in which case no item legend is included.
func BuildPrompt(matches []compactor.CompactedMatch, items ItemNamer) (string, error) {
	if matches == nil {
		matches = []compactor.CompactedMatch{}
	}
	data, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize matches: %w", err)
	}

	pd := promptData{
		Count:       len(matches),
		MatchesJSON: string(data),
		Items:       legendFor(matches, items),
		ChunkSize:   TrendChunkSize,
		Chunks:      trendChunks(len(matches), TrendChunkSize),
	}

	var sb strings.Builder
	if err := promptTemplate.Execute(&sb, pd); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}

// trendChunks labels consecutive windows, most recent first
func trendChunks(n, size int) []string {
	var chunks []string
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		label := fmt.Sprintf("Matches %d-%d", start+1, end)
		if start == 0 {
			label += " (most recent)"
		}
		chunks = append(chunks, label)
	}
	return chunks
}

func legendFor(matches []compactor.CompactedMatch, items ItemNamer) []itemLegend {
	if items == nil {
		return nil
	}

	seen := make(map[int]bool)
	var legend []itemLegend
	for _, m := range matches {
		for _, id := range m.ItemBuild {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			if name, ok := items.Name(id); ok {
				legend = append(legend, itemLegend{ID: id, Name: name})
			}
		}
	}
	sort.Slice(legend, func(i, j int) bool { return legend[i].ID < legend[j].ID })
	return legend
}
