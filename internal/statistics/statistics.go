package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/dominoes/internal/game"
)

// MaxSeats is the largest table tracked per position.
const MaxSeats = 4

// MatchResult is the outcome of one simulated match, seen from the tracked
// seat.
type MatchResult struct {
	Seed      int64 // RNG seed for this match (for replay)
	Position  int   // tracked seat's index in seat order
	Won       bool  // tracked seat's team won the match
	Margin    int   // tracked team score minus the best opposing score
	Rounds    int
	RoundsWon int
	Methods   map[game.Method]int
}

// PositionStats tracks results for one starting position
type PositionStats struct {
	Matches   int
	Wins      int
	SumMargin float64
}

// Statistics aggregates simulated matches
type Statistics struct {
	Matches    int
	Wins       int
	SumMargin  float64
	SumMargin2 float64   // Sum of squares for variance calculation
	Values     []float64 // All margins for median/percentile calculation

	Rounds        int
	RoundsWon     int
	DominoRounds  int
	BlockedRounds int

	PositionResults [MaxSeats]PositionStats
}

// Mean returns the average final margin per match
func (s *Statistics) Mean() float64 {
	if s.Matches == 0 {
		return 0
	}
	return s.SumMargin / float64(s.Matches)
}

// Variance returns the sample variance of the margins
func (s *Statistics) Variance() float64 {
	if s.Matches < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumMargin2 - float64(s.Matches)*mean*mean) / float64(s.Matches-1)
}

// StdDev returns the sample standard deviation of the margins
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Matches == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Matches))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// WinRate returns the share of matches won by the tracked seat's team
func (s *Statistics) WinRate() float64 {
	if s.Matches == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Matches)
}

// Add incorporates a match result
func (s *Statistics) Add(result MatchResult) {
	margin := float64(result.Margin)
	s.Matches++
	s.SumMargin += margin
	s.SumMargin2 += margin * margin
	s.Values = append(s.Values, margin)
	if result.Won {
		s.Wins++
	}

	s.Rounds += result.Rounds
	s.RoundsWon += result.RoundsWon
	s.DominoRounds += result.Methods[game.MethodDomino]
	s.BlockedRounds += result.Methods[game.MethodBlocked]

	if pos := result.Position; pos >= 0 && pos < MaxSeats {
		s.PositionResults[pos].Matches++
		s.PositionResults[pos].SumMargin += margin
		if result.Won {
			s.PositionResults[pos].Wins++
		}
	}
}

// Median returns the median margin
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the margin at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// PositionMean returns the mean margin for a starting position
func (s *Statistics) PositionMean(position int) float64 {
	if position < 0 || position >= MaxSeats {
		return 0
	}
	ps := s.PositionResults[position]
	if ps.Matches == 0 {
		return 0
	}
	return ps.SumMargin / float64(ps.Matches)
}

// Validate checks the aggregates are consistent with each other
func (s *Statistics) Validate() error {
	if s.Matches <= 0 {
		return fmt.Errorf("invalid match count: %d", s.Matches)
	}
	if len(s.Values) != s.Matches {
		return fmt.Errorf("values array length (%d) does not match match count (%d)", len(s.Values), s.Matches)
	}
	if s.Wins > s.Matches {
		return fmt.Errorf("wins (%d) exceed matches (%d)", s.Wins, s.Matches)
	}
	if s.DominoRounds+s.BlockedRounds != s.Rounds {
		return fmt.Errorf("round methods (%d domino + %d blocked) do not match %d rounds",
			s.DominoRounds, s.BlockedRounds, s.Rounds)
	}
	if s.RoundsWon > s.Rounds {
		return fmt.Errorf("rounds won (%d) exceed rounds (%d)", s.RoundsWon, s.Rounds)
	}

	total := 0
	for _, ps := range s.PositionResults {
		total += ps.Matches
	}
	if total != s.Matches {
		return fmt.Errorf("position matches total (%d) does not match match count (%d)", total, s.Matches)
	}
	return nil
}

// Report is the derived summary written alongside terminal output.
type Report struct {
	Matches       int        `json:"matches"`
	Wins          int        `json:"wins"`
	WinRate       float64    `json:"winRate"`
	MeanMargin    float64    `json:"meanMargin"`
	StdDev        float64    `json:"stdDev"`
	StdError      float64    `json:"stdError"`
	CI95          [2]float64 `json:"ci95"`
	Median        float64    `json:"median"`
	Rounds        int        `json:"rounds"`
	RoundsWon     int        `json:"roundsWon"`
	DominoRounds  int        `json:"dominoRounds"`
	BlockedRounds int        `json:"blockedRounds"`
	Positions     []float64  `json:"positionMeans"`
}

// Report summarises the aggregate.
func (s *Statistics) Report() Report {
	low, high := s.ConfidenceInterval95()
	r := Report{
		Matches:       s.Matches,
		Wins:          s.Wins,
		WinRate:       s.WinRate(),
		MeanMargin:    s.Mean(),
		StdDev:        s.StdDev(),
		StdError:      s.StdError(),
		CI95:          [2]float64{low, high},
		Median:        s.Median(),
		Rounds:        s.Rounds,
		RoundsWon:     s.RoundsWon,
		DominoRounds:  s.DominoRounds,
		BlockedRounds: s.BlockedRounds,
	}
	for pos := range s.PositionResults {
		r.Positions = append(r.Positions, s.PositionMean(pos))
	}
	return r
}
