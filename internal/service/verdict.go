package service

import (
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/pkg/judge"
)

// Test case sources. Custom cases are user-authored and never count toward
// the official verdict in contest or assessment contexts.
const (
	CaseSourceSample = "sample"
	CaseSourceHidden = "hidden"
	CaseSourceCustom = "custom"
)

// CaseResult is one judged test case tagged with its source.
type CaseResult struct {
	Source     string
	Input      string
	Expected   string
	Stdout     string
	Stderr     string
	StatusID   int
	RuntimeSec float64
	MemoryKB   int64
}

// Passed reports whether the case was judged accepted.
func (c CaseResult) Passed() bool {
	return judge.IsAccepted(c.StatusID)
}

// VerdictSummary is the aggregate outcome of a graded case list.
type VerdictSummary struct {
	Overall       string
	PassedCount   int
	TotalCount    int
	MaxRuntimeSec float64
	MaxMemoryKB   int64
}

// AggregateVerdict folds an ordered case list into a single verdict. The
// overall verdict is accepted iff every counted case is accepted; otherwise
// it is the verdict of the first non-accepted case in list order. When
// includeCustom is false, custom cases contribute neither to the verdict nor
// to the pass counts.
func AggregateVerdict(results []CaseResult, includeCustom bool) VerdictSummary {
	summary := VerdictSummary{Overall: models.VerdictAccepted}

	for _, result := range results {
		if result.RuntimeSec > summary.MaxRuntimeSec {
			summary.MaxRuntimeSec = result.RuntimeSec
		}
		if result.MemoryKB > summary.MaxMemoryKB {
			summary.MaxMemoryKB = result.MemoryKB
		}

		if result.Source == CaseSourceCustom && !includeCustom {
			continue
		}

		summary.TotalCount++
		if result.Passed() {
			summary.PassedCount++
			continue
		}

		// First failure wins; later cases only contribute counts and totals.
		if summary.Overall == models.VerdictAccepted {
			summary.Overall = verdictForStatus(result.StatusID)
		}
	}

	return summary
}

func verdictForStatus(statusID int) string {
	switch {
	case judge.IsAccepted(statusID):
		return models.VerdictAccepted
	case statusID == judge.StatusWrongAnswer:
		return models.VerdictWrongAnswer
	case statusID == judge.StatusTimeLimitExceeded:
		return models.VerdictTimeLimit
	case statusID == judge.StatusCompilationError:
		return models.VerdictCompileError
	case judge.IsRuntimeError(statusID) || statusID == judge.StatusExecFormatError:
		return models.VerdictRuntimeError
	default:
		return models.VerdictJudgeError
	}
}
