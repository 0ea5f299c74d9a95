package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/money"
)

// splitDocument is the persisted form of an expense split.
type splitDocument struct {
	Kind         StrategyKind          `json:"kind"`
	Participants []participantDocument `json:"participants"`
}

type participantDocument struct {
	UserID     string           `json:"user_id"`
	Share      int64            `json:"share"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Settled    bool             `json:"settled,omitempty"`
	SettledAt  *time.Time       `json:"settled_at,omitempty"`
}

// EncodeSplit serializes a validated split (strategy plus per-participant
// shares and settlement flags) to JSON.
func EncodeSplit(strategy SplitStrategy, participants []Participant) ([]byte, error) {
	if strategy == nil {
		return nil, fmt.Errorf("encode split: nil strategy")
	}
	doc := splitDocument{
		Kind:         strategy.Kind(),
		Participants: make([]participantDocument, len(participants)),
	}

	var pcts []decimal.Decimal
	if ps, ok := strategy.(PercentageSplit); ok {
		if len(ps.Percentages) != len(participants) {
			return nil, fmt.Errorf("encode split: %d percentages for %d participants", len(ps.Percentages), len(participants))
		}
		pcts = ps.Percentages
	}

	for i, p := range participants {
		doc.Participants[i] = participantDocument{
			UserID:    p.UserID,
			Share:     int64(p.Share),
			Settled:   p.Settled,
			SettledAt: p.SettledAt,
		}
		if pcts != nil {
			pct := pcts[i]
			doc.Participants[i].Percentage = &pct
		}
	}

	return json.Marshal(doc)
}

// DecodeSplit is the inverse of EncodeSplit.
func DecodeSplit(data []byte) (SplitStrategy, []Participant, error) {
	var doc splitDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode split: %w", err)
	}

	participants := make([]Participant, len(doc.Participants))
	for i, p := range doc.Participants {
		participants[i] = Participant{
			UserID:    p.UserID,
			Share:     money.Amount(p.Share),
			Settled:   p.Settled,
			SettledAt: p.SettledAt,
		}
	}

	switch doc.Kind {
	case StrategyEqual:
		return EqualSplit{}, participants, nil
	case StrategyPercentage:
		pcts := make([]decimal.Decimal, len(doc.Participants))
		for i, p := range doc.Participants {
			if p.Percentage == nil {
				return nil, nil, fmt.Errorf("decode split: participant %q has no percentage", p.UserID)
			}
			pcts[i] = *p.Percentage
		}
		return PercentageSplit{Percentages: pcts}, participants, nil
	case StrategyCustom:
		shares := make([]money.Amount, len(participants))
		for i, p := range participants {
			shares[i] = p.Share
		}
		return CustomSplit{Shares: shares}, participants, nil
	default:
		return nil, nil, fmt.Errorf("decode split: unknown kind %q", doc.Kind)
	}
}
