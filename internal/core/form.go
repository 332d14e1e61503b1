package core

import (
	"sort"
	"strings"
)

// FieldErrors maps form field names to human-readable messages. It is
// produced locally before any network call; a non-empty value means the
// submit must not proceed.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "no field errors"
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// TransactionInput carries raw form values for creating or updating a
// transaction. Amount is the dollar string as typed by the owner.
type TransactionInput struct {
	CategoryID  string
	Amount      string
	Description string
	Date        string
}

const maxDescriptionLen = 200

// Validate checks the form and returns one message per offending field.
// It returns nil when the input is valid.
func (in TransactionInput) Validate() FieldErrors {
	fe := FieldErrors{}

	if strings.TrimSpace(in.CategoryID) == "" {
		fe["categoryId"] = "select a category"
	}

	if cents, err := ParseDollarsToCents(in.Amount); err != nil {
		fe["amount"] = "enter an amount greater than zero"
	} else if cents <= 0 {
		fe["amount"] = "enter an amount greater than zero"
	}

	desc := strings.TrimSpace(in.Description)
	switch {
	case desc == "":
		fe["description"] = "enter a description"
	case len(in.Description) > maxDescriptionLen:
		fe["description"] = "description too long (max 200 characters)"
	}

	if _, err := ParseDate(in.Date); err != nil {
		fe["date"] = "enter a date as YYYY-MM-DD"
	}

	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Cents parses the amount field. Call only after Validate has passed.
func (in TransactionInput) Cents() (int64, error) {
	return ParseDollarsToCents(in.Amount)
}
