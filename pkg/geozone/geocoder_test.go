package geozone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNominatimClient_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Newark, NJ" {
			t.Errorf("query q = %q, want %q", got, "Newark, NJ")
		}
		if got := r.Header.Get("User-Agent"); got != "payband-test" {
			t.Errorf("User-Agent = %q, want payband-test", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"40.7357","lon":"-74.1724","display_name":"Newark"}]`))
	}))
	defer srv.Close()

	client := &NominatimClient{BaseURL: srv.URL, UserAgent: "payband-test"}
	coord, err := client.Geocode(context.Background(), "Newark, NJ")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if coord.Lat != 40.7357 || coord.Lon != -74.1724 {
		t.Errorf("coord = %+v, want {40.7357 -74.1724}", coord)
	}
}

func TestNominatimClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "empty result list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := &NominatimClient{BaseURL: srv.URL}
			if _, err := client.Geocode(context.Background(), "Nowhere"); err == nil {
				t.Error("Geocode() error = nil, want error")
			}
		})
	}
}

func TestNominatimClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := &NominatimClient{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}

	start := time.Now()
	_, err := client.Geocode(context.Background(), "Slowville")
	if err == nil {
		t.Fatal("Geocode() error = nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("lookup took %v, want bounded by the 50ms timeout", elapsed)
	}
}

func TestHaversineKm(t *testing.T) {
	newYork := Coord{Lat: 40.7128, Lon: -74.0060}
	newark := Coord{Lat: 40.7357, Lon: -74.1724}
	boise := Coord{Lat: 43.6150, Lon: -116.2023}

	if km := haversineKm(newYork, newark); km < 10 || km > 16 {
		t.Errorf("NY-Newark = %.1fkm, want ~13km", km)
	}
	if km := haversineKm(newYork, boise); km < 3000 {
		t.Errorf("NY-Boise = %.1fkm, want well over 3000km", km)
	}
	if km := haversineKm(newYork, newYork); km != 0 {
		t.Errorf("zero distance = %v, want 0", km)
	}
}
