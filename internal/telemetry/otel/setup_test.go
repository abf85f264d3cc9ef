package otel

import (
	"context"
	"testing"
)

func TestNewProviders_EmptyEndpointIsNoop(t *testing.T) {
	p, err := NewProviders(context.Background(), "", "portal-api", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.TracerProvider == nil {
		t.Fatal("TracerProvider nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewProviders_BadEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), "http://", "portal-api", false); err == nil {
		t.Error("want error for endpoint without host")
	}
}
