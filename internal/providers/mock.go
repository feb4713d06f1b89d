package providers

import (
	"context"
	"fmt"
)

// MockLocator returns canned provider listings for development and
// tests. No network is involved.
type MockLocator struct{}

func NewMockLocator() *MockLocator { return &MockLocator{} }

func (l *MockLocator) Lookup(_ context.Context, locationCode, _ string) (string, error) {
	return fmt.Sprintf(
		"Providers near %s:\n"+
			"1. Community Health Clinic, 12 Main St — PrEP services, sliding-scale fees.\n"+
			"2. Regional Medical Center, 400 Oak Ave — PrEP and STI testing.\n"+
			"3. Neighborhood Pharmacy Clinic, 77 Elm Rd — PrEP consultations.",
		locationCode), nil
}
