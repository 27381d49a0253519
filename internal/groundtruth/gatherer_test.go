package groundtruth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/christo725/seen/internal/config"
)

func testGatherer(sunURL, weatherURL, geocodeURL string) *Gatherer {
	return NewGatherer(config.ContextConfig{
		SunBaseURL:     sunURL,
		WeatherBaseURL: weatherURL,
		WeatherAPIKey:  "test-key",
		GeocodeBaseURL: geocodeURL,
		Timeout:        "5s",
	}, zap.NewNop())
}

func TestGather_AllSignals(t *testing.T) {
	sun := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":{"sunrise":"2024-06-15T06:00:00+00:00","sunset":"2024-06-15T20:00:00+00:00"},"status":"OK"}`)
	}))
	defer sun.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("appid"))
		fmt.Fprint(w, `{"weather":[{"main":"Clear","description":"clear sky"}],"main":{"temp":21.5}}`)
	}))
	defer weather.Close()

	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"display_name":"Golden Gate Park, San Francisco"}`)
	}))
	defer geocode.Close()

	captured := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	snap := testGatherer(sun.URL, weather.URL, geocode.URL).
		Gather(context.Background(), 37.77, -122.48, &captured)

	require.NotNil(t, snap.Sunrise)
	require.NotNil(t, snap.Sunset)
	require.NotNil(t, snap.IsDaytime)
	assert.True(t, *snap.IsDaytime)
	assert.Equal(t, "clear sky", snap.WeatherDescription)
	require.NotNil(t, snap.TemperatureC)
	assert.InDelta(t, 21.5, *snap.TemperatureC, 0.001)
	assert.Equal(t, []string{"Clear"}, snap.Conditions)
	assert.Equal(t, "Golden Gate Park, San Francisco", snap.PlaceName)
}

func TestGather_ProviderFailuresDegrade(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	captured := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	snap := testGatherer(failing.URL, failing.URL, failing.URL).
		Gather(context.Background(), 51.5, -0.12, &captured)

	assert.Nil(t, snap.Sunrise)
	assert.Nil(t, snap.IsDaytime)
	assert.Empty(t, snap.WeatherDescription)
	assert.Empty(t, snap.PlaceName)
}

func TestGather_NoCaptureDateSkipsSunAndWeather(t *testing.T) {
	var sunCalls, weatherCalls atomic.Int64
	sun := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sunCalls.Add(1)
	}))
	defer sun.Close()
	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weatherCalls.Add(1)
	}))
	defer weather.Close()
	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"display_name":"Reykjavik, Iceland"}`)
	}))
	defer geocode.Close()

	snap := testGatherer(sun.URL, weather.URL, geocode.URL).
		Gather(context.Background(), 64.1, -21.9, nil)

	assert.Zero(t, sunCalls.Load())
	assert.Zero(t, weatherCalls.Load())
	assert.Nil(t, snap.IsDaytime)
	assert.Equal(t, "Reykjavik, Iceland", snap.PlaceName)
}
