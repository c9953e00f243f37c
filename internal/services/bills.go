package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/uptrace/bun"

	"survey-bknd/internal/models"
)

type billReader struct {
	db *bun.DB
}

// newBillLoader batches bill lookups of one request into a single IN query.
// Loaders cache results, so one is built per request.
func newBillLoader(db *bun.DB) *dataloader.Loader[string, []models.Bill] {
	r := &billReader{db: db}
	return dataloader.NewBatchedLoader(r.getBills,
		dataloader.WithWait[string, []models.Bill](time.Millisecond),
		dataloader.WithBatchCapacity[string, []models.Bill](1000),
	)
}

func (r *billReader) getBills(ctx context.Context, surveyIDs []string) []*dataloader.Result[[]models.Bill] {
	var bills []models.Bill
	err := r.db.NewSelect().
		Model(&bills).
		Where("b.survey_id IN (?)", bun.In(surveyIDs)).
		Scan(ctx)
	if err != nil {
		return handleError[[]models.Bill](len(surveyIDs), fmt.Errorf("select bills: %w", err))
	}

	byUnit := make(map[string][]models.Bill, len(surveyIDs))
	for _, b := range bills {
		byUnit[b.SurveyID] = append(byUnit[b.SurveyID], b)
	}

	results := make([]*dataloader.Result[[]models.Bill], 0, len(surveyIDs))
	for _, id := range surveyIDs {
		unitBills := byUnit[id]
		if unitBills == nil {
			unitBills = []models.Bill{}
		}
		sortBills(unitBills)
		results = append(results, &dataloader.Result[[]models.Bill]{Data: unitBills})
	}
	return results
}

// attachBills loads the bills of every unit through loader.
func attachBills(ctx context.Context, loader *dataloader.Loader[string, []models.Bill], units []models.SurveyUnit) error {
	if len(units) == 0 {
		return nil
	}
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.SurveyID
	}

	bills, errs := loader.LoadMany(ctx, ids)()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for i := range units {
		units[i].Bills = bills[i]
	}
	return nil
}

// sortBills orders bills by month, oldest first. The month is stored as a token,
// so the database cannot order it.
func sortBills(bills []models.Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].BillMonth.Before(bills[j].BillMonth)
	})
}

func handleError[T any](n int, err error) []*dataloader.Result[T] {
	results := make([]*dataloader.Result[T], n)
	for i := range results {
		results[i] = &dataloader.Result[T]{Error: err}
	}
	return results
}
