package domain

// ValidateFact checks the fact contract the core depends on. It returns a
// *DataQualityError listing every violated rule, or nil.
func ValidateFact(f FactRecord) error {
	rows := factViolations(f)
	if len(rows) == 0 {
		return nil
	}
	return &DataQualityError{Rows: rows}
}

func factViolations(f FactRecord) []RowRef {
	var rows []RowRef
	add := func(reason string) {
		rows = append(rows, RowRef{ProductID: f.ProductID, Date: dateOrEmpty(f), Reason: reason})
	}

	if f.ProductID <= 0 {
		add("missing product_id")
	}
	if f.Date.IsZero() {
		add("missing date")
	}
	if f.Quantity < 0 {
		add("negative quantity")
	}
	switch {
	case f.UnitCost.IsNegative():
		add("negative unit_cost")
	case f.UnitCost.IsZero():
		add("missing or zero unit_cost")
	}

	return rows
}

// RowViolations returns the violations of a single persisted row, used by the
// core when it re-validates history before computing.
func RowViolations(f FactRecord) []RowRef {
	return factViolations(f)
}

func dateOrEmpty(f FactRecord) string {
	if f.Date.IsZero() {
		return ""
	}
	return f.DateKey()
}
