package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// SchemaVersion is written into every persisted cart. Version 0 is the
// legacy layout: a bare JSON array of lines.
const SchemaVersion = 1

var ErrUnsupportedSchema = errors.New("unsupported cart schema version")

type snapshot struct {
	SchemaVersion int             `json:"schemaVersion"`
	Lines         []persistedLine `json:"lines"`
}

type persistedLine struct {
	ProductID     string      `json:"productId"`
	UnitPrice     json.Number `json:"unitPrice"`
	Quantity      int         `json:"quantity"`
	DisplayFields Display     `json:"displayFields"`
}

// Encode serializes lines in the current schema.
func Encode(lines []Line) ([]byte, error) {
	s := snapshot{
		SchemaVersion: SchemaVersion,
		Lines:         make([]persistedLine, len(lines)),
	}
	for i, l := range lines {
		s.Lines[i] = persistedLine{
			ProductID:     l.ProductID,
			UnitPrice:     json.Number(l.UnitPrice.String()),
			Quantity:      l.Quantity,
			DisplayFields: l.Display,
		}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// Decode parses a persisted cart. Lines that break the cart invariants are
// dropped and duplicate product ids are merged, so whatever comes back is
// safe to load into a Store.
func Decode(data []byte) ([]Line, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var s snapshot
	if data[0] == '[' {
		if err := json.Unmarshal(data, &s.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal legacy cart failed: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal cart failed: %w", err)
		}
		if s.SchemaVersion > SchemaVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, s.SchemaVersion)
		}
	}

	lines := make([]Line, 0, len(s.Lines))
	index := make(map[string]int, len(s.Lines))
	for _, pl := range s.Lines {
		if pl.ProductID == "" || pl.Quantity < 1 || pl.Quantity > MaxLineQuantity {
			continue
		}
		price, err := decimal.NewFromString(pl.UnitPrice.String())
		if err != nil || price.IsNegative() {
			continue
		}
		if i, ok := index[pl.ProductID]; ok {
			lines[i].Quantity = min(lines[i].Quantity, MaxLineQuantity-pl.Quantity) + pl.Quantity
			continue
		}
		index[pl.ProductID] = len(lines)
		lines = append(lines, Line{
			ProductID: pl.ProductID,
			UnitPrice: price,
			Quantity:  pl.Quantity,
			Display:   pl.DisplayFields,
		})
	}
	return lines, nil
}
