package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticValidatorParsesSpec(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:Coffee Drip:merchant,k2::analyst|merchant")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}

	merchant, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("merchant key rejected")
	}
	if merchant.TenantScope != "Coffee Drip" || !merchant.HasRole(RoleMerchant) {
		t.Fatalf("merchant identity = %+v", merchant)
	}
	if merchant.CanAccess("Tikka Shack") {
		t.Fatal("merchant key must not reach other tenants")
	}
	if !merchant.CanAccess("coffee drip") {
		t.Fatal("scope match should be case-insensitive")
	}

	analyst, ok := validator.Validate(context.Background(), "k2")
	if !ok {
		t.Fatal("analyst key rejected")
	}
	if analyst.TenantScope != "" || !analyst.CanAccess("Tikka Shack") {
		t.Fatalf("analyst identity = %+v", analyst)
	}

	if _, ok := validator.Validate(context.Background(), "unknown"); ok {
		t.Fatal("unknown key accepted")
	}
}

func TestStaticValidatorRejectsMalformedSpec(t *testing.T) {
	for _, spec := range []string{"justakey", "k1:tenant", "k1:tenant:", ":tenant:role"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("spec %q should be rejected", spec)
		}
	}
}

func TestMiddleware(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:Coffee Drip:merchant")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}

	var captured Identity
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req.Header.Set("X-API-Key", "k1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if captured.TenantScope != "Coffee Drip" {
		t.Fatalf("identity = %+v", captured)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bearer status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid key status = %d", rec.Code)
	}
}
