// Package storage keeps an optional history of screening runs.
package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/user/roev/internal/metrics"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run records one batch of computations.
type Run struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Source       string     `gorm:"size:32;not null" json:"source"` // yahoo, csv_upload, api
	Tickers      string     `gorm:"type:text" json:"tickers"`
	RecordsCount int        `json:"records_count"`
	Status       RunStatus  `gorm:"size:20;index" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    time.Time  `gorm:"index" json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`

	Snapshots []Snapshot `gorm:"foreignKey:RunID" json:"snapshots,omitempty"`
}

// NewRun starts a run for the given tickers.
func NewRun(source string, tickers []string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Source:    source,
		Tickers:   strings.Join(tickers, ","),
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
}

// BeforeCreate assigns an ID to runs created without one.
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Finish marks the run done with the given status.
func (r *Run) Finish(status RunStatus, records int, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = status
	r.RecordsCount = records
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// TickerList splits the stored ticker list.
func (r *Run) TickerList() []string {
	if r.Tickers == "" {
		return nil
	}
	return strings.Split(r.Tickers, ",")
}

// Snapshot is one computed record. Nil columns are N/A.
type Snapshot struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	RunID  string `gorm:"type:varchar(36);index;not null" json:"run_id"`
	Symbol string `gorm:"size:20;index;not null" json:"symbol"`
	Period string `gorm:"size:20" json:"period,omitempty"`

	EnterpriseValue *float64 `json:"enterprise_value"`
	NetIncome       *float64 `json:"net_income"`
	RevenueCurrent  *float64 `json:"revenue_current"`
	RevenuePrior    *float64 `json:"revenue_prior"`
	EBITDA          *float64 `gorm:"column:ebitda" json:"ebitda"`
	TotalDebt       *float64 `json:"total_debt"`
	Cash            *float64 `json:"cash"`
	Price           *float64 `json:"price"`
	EPS             *float64 `gorm:"column:eps" json:"eps"`

	ROEV            *float64 `gorm:"column:roev" json:"roev"`
	RevenueGrowth   *float64 `json:"revenue_growth"`
	NetProfitMargin *float64 `json:"net_profit_margin"`
	NetDebtToEBITDA *float64 `gorm:"column:net_debt_to_ebitda" json:"net_debt_to_ebitda"`
	PERatio         *float64 `gorm:"column:pe_ratio" json:"pe_ratio"`

	ComputedAt time.Time `gorm:"index" json:"computed_at"`
}

// SnapshotFromRecord converts a record for storage. Metrics are stored
// unrounded.
func SnapshotFromRecord(runID string, rec metrics.Record, at time.Time) Snapshot {
	f, m := rec.Facts, rec.Metrics
	return Snapshot{
		RunID:           runID,
		Symbol:          f.Identifier,
		Period:          f.Period,
		EnterpriseValue: f.EnterpriseValue.Pointer(),
		NetIncome:       f.NetIncome.Pointer(),
		RevenueCurrent:  f.RevenueCurrent.Pointer(),
		RevenuePrior:    f.RevenuePrior.Pointer(),
		EBITDA:          f.EBITDA.Pointer(),
		TotalDebt:       f.TotalDebt.Pointer(),
		Cash:            f.Cash.Pointer(),
		Price:           f.Price.Pointer(),
		EPS:             f.EPS.Pointer(),
		ROEV:            m.ROEV.Pointer(),
		RevenueGrowth:   m.RevenueGrowth.Pointer(),
		NetProfitMargin: m.NetProfitMargin.Pointer(),
		NetDebtToEBITDA: m.NetDebtToEBITDA.Pointer(),
		PERatio:         m.PERatio.Pointer(),
		ComputedAt:      at.UTC(),
	}
}

// Record converts the snapshot back. Failure reasons are not stored.
func (s Snapshot) Record() metrics.Record {
	return metrics.Record{
		Facts: metrics.FinancialFacts{
			Identifier:      s.Symbol,
			Period:          s.Period,
			EnterpriseValue: metrics.Ptr(s.EnterpriseValue),
			NetIncome:       metrics.Ptr(s.NetIncome),
			RevenueCurrent:  metrics.Ptr(s.RevenueCurrent),
			RevenuePrior:    metrics.Ptr(s.RevenuePrior),
			EBITDA:          metrics.Ptr(s.EBITDA),
			TotalDebt:       metrics.Ptr(s.TotalDebt),
			Cash:            metrics.Ptr(s.Cash),
			Price:           metrics.Ptr(s.Price),
			EPS:             metrics.Ptr(s.EPS),
		},
		Metrics: metrics.DerivedMetrics{
			ROEV:            metrics.Ptr(s.ROEV),
			RevenueGrowth:   metrics.Ptr(s.RevenueGrowth),
			NetProfitMargin: metrics.Ptr(s.NetProfitMargin),
			NetDebtToEBITDA: metrics.Ptr(s.NetDebtToEBITDA),
			PERatio:         metrics.Ptr(s.PERatio),
		},
	}
}
