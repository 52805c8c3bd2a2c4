package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
)

const maxBarWidth = 50

// PlotSplitScoresTerminal writes one horizontal bar per split, in ascending
// order of the split's mean value.
func PlotSplitScoresTerminal(w io.Writer, score *Score, title string) error {
	values, err := SplitValues(score.Raw, stats.Mean)
	if err != nil {
		return err
	}

	type SplitScore struct {
		Split int
		Score float64
	}

	splitScores := make([]SplitScore, len(values))
	for i := range values {
		splitScores[i] = SplitScore{
			Split: i,
			Score: values[i],
		}
	}

	sort.Slice(splitScores, func(i, j int) bool {
		return splitScores[i].Score < splitScores[j].Score
	})

	minScore := splitScores[0].Score
	maxScore := splitScores[len(splitScores)-1].Score

	fmt.Fprintf(w, "\n%s (ascending):\n", title)
	fmt.Fprintln(w, "Split | Score     | Bar Chart")
	fmt.Fprintln(w, "------|-----------|"+strings.Repeat("-", maxBarWidth))

	for _, ss := range splitScores {
		var barWidth int
		if maxScore != minScore {
			barWidth = int((ss.Score - minScore) / (maxScore - minScore) * float64(maxBarWidth))
		} else {
			barWidth = maxBarWidth / 2
		}

		bar := strings.Repeat("█", barWidth)
		if barWidth == 0 {
			bar = "▏"
		}

		fmt.Fprintf(w, "%5d | %9.6f | %s\n", ss.Split, ss.Score, bar)
	}

	fmt.Fprintf(w, "\nScale: Min=%.6f, Max=%.6f, center=%.6f, error=%.6f\n", minScore, maxScore, score.Center(), score.Error())
	return nil
}
