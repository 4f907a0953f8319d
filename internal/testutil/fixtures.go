package testutil

import "github.com/residio-ng/residio/internal/model"

// StandardResidents returns a small directory covering the common matching
// scenarios: plain names, aliases, and a known account number.
func StandardResidents() []model.Resident {
	return []model.Resident{
		{
			ID:            "res-001",
			FullName:      "John Smith",
			HouseNumber:   "A1",
			AccountNumber: "0123456789",
			Aliases:       []string{"JOHN A SMITH"},
		},
		{
			ID:          "res-002",
			FullName:    "Mary Okafor",
			HouseNumber: "B4",
			Aliases:     []string{"OKAFOR MARY CHIAMAKA"},
		},
		{
			ID:          "res-003",
			FullName:    "Adewale Bello",
			HouseNumber: "C2",
		},
	}
}

// StandardCategories returns the expense categories most tests need.
func StandardCategories() []model.ExpenseCategory {
	return []model.ExpenseCategory{
		{ID: "cat-security", Name: "Security"},
		{ID: "cat-power", Name: "Power & Diesel"},
		{ID: "cat-maintenance", Name: "Maintenance"},
	}
}
