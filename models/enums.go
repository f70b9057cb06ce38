package models

import (
	"encoding/json"
	"strings"
)

type MovementKind string

const (
	MovementKindEntry MovementKind = "Entry"
	MovementKindExit  MovementKind = "Exit"
)

func (k MovementKind) IsValid() bool {
	return k == MovementKindEntry || k == MovementKindExit
}

// ParseMovementKind accepts the kind case-insensitively.
func ParseMovementKind(s string) (MovementKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry", "in":
		return MovementKindEntry, nil
	case "exit", "out":
		return MovementKindExit, nil
	}
	return "", NewValidationError("kind", "movement kind must be Entry or Exit")
}

func (k *MovementKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return NewValidationError("kind", "movement kind must be a string")
	}
	parsed, err := ParseMovementKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type MovementReason string

const (
	MovementReasonSale       MovementReason = "Sale"
	MovementReasonRestock    MovementReason = "Restock"
	MovementReasonAdjustment MovementReason = "Adjustment"
	MovementReasonLoss       MovementReason = "Loss"
	MovementReasonReturn     MovementReason = "Return"
	MovementReasonOther      MovementReason = "Other"
)

type PaymentMethod string

const (
	PaymentMethodPix         PaymentMethod = "Pix"
	PaymentMethodCredit      PaymentMethod = "Credit Card"
	PaymentMethodDebit       PaymentMethod = "Debit Card"
	PaymentMethodCash        PaymentMethod = "Cash"
	PaymentMethodMealVoucher PaymentMethod = "Meal Voucher"
	PaymentMethodBankSlip    PaymentMethod = "Bank Slip"
	PaymentMethodTransfer    PaymentMethod = "Transfer"
	PaymentMethodOther       PaymentMethod = "Other"

	PaymentMethodNotInformed PaymentMethod = "Not informed"
)

var PaymentMethods = []PaymentMethod{
	PaymentMethodPix,
	PaymentMethodCredit,
	PaymentMethodDebit,
	PaymentMethodCash,
	PaymentMethodMealVoucher,
	PaymentMethodBankSlip,
	PaymentMethodTransfer,
	PaymentMethodOther,
}

// NormalizePaymentMethod trims m; blank becomes "Not informed". Unknown methods are kept as given.
func NormalizePaymentMethod(m string) PaymentMethod {
	m = strings.TrimSpace(m)
	if m == "" {
		return PaymentMethodNotInformed
	}
	for _, pm := range PaymentMethods {
		if strings.EqualFold(string(pm), m) {
			return pm
		}
	}
	return PaymentMethod(m)
}
