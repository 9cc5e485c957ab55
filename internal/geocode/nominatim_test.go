package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseNominatimItems(t *testing.T) {
	items := []nominatimItem{
		{
			Lat:         "12.9756",
			Lon:         "77.6050",
			DisplayName: "MG Road, Bengaluru, Karnataka, India",
			Importance:  0.61,
		},
	}
	res, err := parseNominatimItems(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lat != 12.9756 || res.Lon != 77.6050 {
		t.Fatalf("unexpected coordinates: %+v", res)
	}
	if res.Confidence != 0.61 {
		t.Fatalf("unexpected confidence: %f", res.Confidence)
	}
}

func TestParseNominatimItemsEmpty(t *testing.T) {
	if _, err := parseNominatimItems(nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocateQualifiesAndCaches(t *testing.T) {
	var calls int32
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`[{"lat":"28.6139","lon":"77.2090","display_name":"New Delhi, India","importance":0.8}]`))
	}))
	defer srv.Close()

	g := &NominatimGeocoder{BaseURL: srv.URL, Country: "India", MinInterval: time.Millisecond}
	lat, lon, err := g.Locate(context.Background(), "Connaught Place")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lat != 28.6139 || lon != 77.2090 {
		t.Fatalf("unexpected coordinates: %f %f", lat, lon)
	}
	if gotQuery != "Connaught Place, India" {
		t.Fatalf("unexpected query: %s", gotQuery)
	}
	if _, _, err := g.Locate(context.Background(), "Connaught Place"); err != nil {
		t.Fatalf("unexpected error on cached lookup: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}
}
