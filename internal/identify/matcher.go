package identify

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"marquee/internal/logging"
	"marquee/internal/services/tmdb"
)

// SelectBest picks the most plausible movie for a free-form query. Scoring
// favors title containment plus TMDB popularity signals; when the requester
// mentioned a year, results nearer that year score higher. Returns nil when
// nothing clears the confidence thresholds.
func SelectBest(logger *slog.Logger, query string, year int, response *tmdb.Response) *tmdb.Result {
	if response == nil || len(response.Results) == 0 {
		return nil
	}
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryNormalized := normalizeForComparison(query)

	var best *tmdb.Result
	bestScore := -1.0
	for idx := range response.Results {
		res := response.Results[idx]
		score := scoreResult(queryLower, year, res)
		if score > bestScore {
			best = &response.Results[idx]
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}

	titleLower := strings.ToLower(best.Title)
	exactMatch := titleLower == queryLower || normalizeForComparison(best.Title) == queryNormalized

	logger.Debug("best metadata candidate",
		logging.Int64(logging.FieldTMDBID, best.ID),
		logging.String("title", best.Title),
		logging.Float64("score", bestScore),
		logging.Bool("exact_title_match", exactMatch))

	if exactMatch {
		if best.VoteAverage > 0 && best.VoteAverage < 2.0 {
			logger.Warn("exact match rejected: vote average too low",
				logging.Float64("vote_average", best.VoteAverage))
			return nil
		}
		return best
	}

	if best.VoteAverage > 0 && best.VoteAverage < 3.0 {
		logger.Warn("partial match rejected: vote average too low",
			logging.Float64("vote_average", best.VoteAverage))
		return nil
	}
	if bestScore < 1.0 {
		logger.Warn("partial match rejected: score too low",
			logging.Float64("score", bestScore))
		return nil
	}
	return best
}

func scoreResult(queryLower string, wantYear int, result tmdb.Result) float64 {
	if result.Title == "" {
		return 0
	}
	titleLower := strings.ToLower(result.Title)
	score := 0.0
	if strings.Contains(titleLower, queryLower) {
		score += 1.0
	}
	score += result.VoteAverage / 10.0
	votes := float64(result.VoteCount) / 1000.0
	if votes > 1.0 {
		votes = 1.0
	}
	score += votes

	if wantYear > 0 {
		if resultYear := result.Year(); resultYear > 0 {
			distance := wantYear - resultYear
			if distance < 0 {
				distance = -distance
			}
			// A mentioned year outweighs popularity; the bonus fades within
			// a decade.
			if distance <= 10 {
				score += float64(10-distance) / 5.0
			}
		}
	}
	return score
}

// NormalizeTitle cleans up requester-typed titles for display and search.
func NormalizeTitle(raw string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' || r == ':':
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	return cases.Title(language.Und).String(title)
}

func normalizeForComparison(input string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(input) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
