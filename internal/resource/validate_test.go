package resource

import (
	"testing"

	"github.com/dropDatabas3/portero/internal/oautherr"
)

func TestValidateRequested(t *testing.T) {
	registered := []string{"https://api.example/orders", "https://api.example/billing"}

	if err := ValidateRequested(nil, registered); err != nil {
		t.Fatalf("empty request must pass: %v", err)
	}
	if err := ValidateRequested([]string{"https://api.example/orders"}, registered); err != nil {
		t.Fatalf("registered resource rejected: %v", err)
	}
	err := ValidateRequested([]string{"https://api.example/other"}, registered)
	if !oautherr.Is(err, oautherr.InvalidResource) {
		t.Fatalf("want invalid_target, got %v", err)
	}
	// registro vacío: cualquier pedido falla
	if err := ValidateRequested([]string{"https://api.example/orders"}, nil); err == nil {
		t.Fatal("request against empty registry must fail")
	}
}

func TestValidateConsistency_Subset(t *testing.T) {
	authorized := []string{"https://api.example/orders", "https://api.example/billing"}

	got, err := ValidateConsistency([]string{"https://api.example/orders"}, authorized, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "https://api.example/orders" {
		t.Fatalf("got %v", got)
	}

	// igual set también es subconjunto
	if _, err := ValidateConsistency(authorized, authorized, true); err != nil {
		t.Fatal(err)
	}

	// pedido vacío colapsa a nil
	got, err = ValidateConsistency(nil, authorized, true)
	if err != nil || got != nil {
		t.Fatalf("got (%v, %v)", got, err)
	}
}

func TestValidateConsistency_Widening(t *testing.T) {
	authorized := []string{"https://api.example/orders"}
	_, err := ValidateConsistency([]string{"https://api.example/orders", "https://api.example/billing"}, authorized, true)
	if !oautherr.Is(err, oautherr.InvalidResource) {
		t.Fatalf("want invalid_target, got %v", err)
	}
}

func TestValidateConsistency_Disabled(t *testing.T) {
	requested := []string{"https://api.example/whatever"}
	got, err := ValidateConsistency(requested, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != requested[0] {
		t.Fatalf("disabled mode must pass requests through unchanged, got %v", got)
	}
}
