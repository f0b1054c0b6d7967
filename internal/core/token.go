package core

import (
	"fmt"
	"strings"
)

// Job tokens take the form:
// <restaurant_code>_<order_id>_<cloud_print_id>_<uuid>
// The printer echoes the token on the DELETE cleanup call, which uses
// the uuid to remove tmp files and the durable record. Parsing is
// positional, so admission rejects orders whose fields contain the
// delimiter (the generated uuid never does).
const tokenDelimiter = "_"

type TokenFields struct {
	RestaurantCode string
	OrderID        string
	CloudPrintID   string
	UUID           string
}

func MintToken(order *Order) string {
	return strings.Join([]string{
		strings.ToLower(order.RestaurantCode),
		order.OrderID,
		order.CloudPrintID,
		order.UUID,
	}, tokenDelimiter)
}

func ParseToken(token string) (TokenFields, error) {
	parts := strings.Split(token, tokenDelimiter)
	if len(parts) != 4 {
		return TokenFields{}, fmt.Errorf("malformed job token: expected 4 fields, got %d", len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return TokenFields{}, fmt.Errorf("malformed job token: empty field")
		}
	}

	return TokenFields{
		RestaurantCode: parts[0],
		OrderID:        parts[1],
		CloudPrintID:   parts[2],
		UUID:           parts[3],
	}, nil
}

// TokenSafe reports whether every value is free of the token delimiter.
func TokenSafe(values ...string) bool {
	for _, v := range values {
		if strings.Contains(v, tokenDelimiter) {
			return false
		}
	}
	return true
}
