package models

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/money"
)

// StrategyKind names a split strategy variant.
type StrategyKind string

const (
	StrategyEqual      StrategyKind = "equal"
	StrategyPercentage StrategyKind = "percentage"
	StrategyCustom     StrategyKind = "custom"
)

// SplitStrategy is a closed set of variants: EqualSplit, PercentageSplit
// and CustomSplit. Each carries only the fields relevant to it.
type SplitStrategy interface {
	Kind() StrategyKind
	isSplitStrategy()
}

// EqualSplit divides the total evenly; the first participants in list order
// absorb the remainder one minor unit each.
type EqualSplit struct{}

// PercentageSplit assigns each participant a percentage of the total, in
// participant list order.
type PercentageSplit struct {
	Percentages []decimal.Decimal
}

// CustomSplit assigns explicit shares, in participant list order.
type CustomSplit struct {
	Shares []money.Amount
}

func (EqualSplit) Kind() StrategyKind      { return StrategyEqual }
func (PercentageSplit) Kind() StrategyKind { return StrategyPercentage }
func (CustomSplit) Kind() StrategyKind     { return StrategyCustom }

func (EqualSplit) isSplitStrategy()      {}
func (PercentageSplit) isSplitStrategy() {}
func (CustomSplit) isSplitStrategy()     {}

// NewStrategy builds a variant from loosely typed input, rejecting fields
// that do not belong to the chosen variant.
func NewStrategy(kind StrategyKind, percentages []decimal.Decimal, shares []money.Amount) (SplitStrategy, error) {
	switch kind {
	case StrategyEqual:
		if len(percentages) > 0 || len(shares) > 0 {
			return nil, apperr.Invalid("", "strategy", string(kind), "equal split takes no percentages or shares")
		}
		return EqualSplit{}, nil
	case StrategyPercentage:
		if len(shares) > 0 {
			return nil, apperr.Invalid("", "strategy", string(kind), "percentage split takes no custom shares")
		}
		return PercentageSplit{Percentages: percentages}, nil
	case StrategyCustom:
		if len(percentages) > 0 {
			return nil, apperr.Invalid("", "strategy", string(kind), "custom split takes no percentages")
		}
		return CustomSplit{Shares: shares}, nil
	default:
		return nil, apperr.Invalid("", "strategy", string(kind), "unknown split strategy %q", kind)
	}
}
