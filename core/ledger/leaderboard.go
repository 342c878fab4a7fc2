package ledger

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// Aggregate folds an event slice into per-operator monthly rows. It assumes
// the events already belong to the given month; callers use MonthRange to
// bound the query. Rank is left unset, Leaderboard assigns it.
func Aggregate(events []model.PerformanceEvent, month time.Month, year int) []model.OperatorMonthlyAggregate {
	type acc struct {
		agg       model.OperatorMonthlyAggregate
		reactions []float64
	}
	byOp := map[string]*acc{}
	for _, ev := range events {
		a, ok := byOp[ev.OperatorID]
		if !ok {
			a = &acc{agg: model.OperatorMonthlyAggregate{OperatorID: ev.OperatorID, Month: month, Year: year}}
			byOp[ev.OperatorID] = a
		}
		switch ev.Type {
		case model.EventCompletion:
			a.agg.MissionsCompleted++
			a.agg.TotalPoints += ev.PointsDelta
			if ev.ReactionSeconds != nil {
				a.reactions = append(a.reactions, *ev.ReactionSeconds)
			}
		case model.EventPenalty:
			if ev.PointsDelta < 0 {
				a.agg.PenaltiesReceived += -ev.PointsDelta
			} else {
				a.agg.PenaltiesReceived += ev.PointsDelta
			}
		}
	}
	res := make([]model.OperatorMonthlyAggregate, 0, len(byOp))
	for _, a := range byOp {
		a.agg.NetPoints = a.agg.TotalPoints - a.agg.PenaltiesReceived
		if len(a.reactions) > 0 {
			a.agg.AvgReactionSeconds = stat.Mean(a.reactions, nil)
			fastest := a.reactions[0]
			for _, r := range a.reactions[1:] {
				if r < fastest {
					fastest = r
				}
			}
			a.agg.FastestReactionSeconds = fastest
		}
		res = append(res, a.agg)
	}
	return res
}

// Leaderboard queries the month's events and returns ranked aggregates.
// Ordering is a deterministic total order: net points descending, missions
// completed descending, operator id ascending. For a fully elapsed month
// repeated calls return identical results.
func Leaderboard(ctx context.Context, store Store, month time.Month, year int) ([]model.OperatorMonthlyAggregate, error) {
	from, to := MonthRange(month, year)
	events, err := store.Query(ctx, Query{From: from, To: to})
	if err != nil {
		return nil, err
	}
	rows := Aggregate(events, month, year)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NetPoints != rows[j].NetPoints {
			return rows[i].NetPoints > rows[j].NetPoints
		}
		if rows[i].MissionsCompleted != rows[j].MissionsCompleted {
			return rows[i].MissionsCompleted > rows[j].MissionsCompleted
		}
		return rows[i].OperatorID < rows[j].OperatorID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
