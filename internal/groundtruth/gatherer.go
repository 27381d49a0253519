// Package groundtruth fetches the contextual signals a verification run is
// checked against: sunrise/sunset, current weather, and a reverse-geocoded
// place name. Every signal is best-effort; a provider failure degrades to an
// absent signal and never fails the gather.
package groundtruth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/christo725/seen/internal/config"
)

// Snapshot is the ephemeral bundle of trusted-source data for one
// coordinate and capture time. Nil/empty fields mean "signal unavailable".
type Snapshot struct {
	Sunrise   *time.Time
	Sunset    *time.Time
	IsDaytime *bool

	WeatherDescription string
	TemperatureC       *float64
	Conditions         []string

	PlaceName string
}

// Gatherer issues the three independent context lookups.
type Gatherer struct {
	sunBaseURL     string
	weatherBaseURL string
	weatherAPIKey  string
	geocodeBaseURL string

	httpClient *http.Client
	log        *zap.Logger
}

// NewGatherer builds a Gatherer from configuration.
func NewGatherer(cfg config.ContextConfig, log *zap.Logger) *Gatherer {
	return &Gatherer{
		sunBaseURL:     cfg.SunBaseURL,
		weatherBaseURL: cfg.WeatherBaseURL,
		weatherAPIKey:  cfg.WeatherAPIKey,
		geocodeBaseURL: cfg.GeocodeBaseURL,
		httpClient: &http.Client{
			Timeout: config.ParseDuration(cfg.Timeout, 10*time.Second),
		},
		log: log,
	}
}

// Gather fetches all available signals for the coordinate. The three lookups
// run concurrently; there is no ordering requirement among them. When
// capturedAt is nil, sun and weather lookups are skipped entirely: live
// conditions say nothing about undated media, and the model is told to fall
// back to web search instead.
func (g *Gatherer) Gather(ctx context.Context, lat, lon float64, capturedAt *time.Time) Snapshot {
	var snap Snapshot

	var (
		sunrise, sunset *time.Time
		weatherDesc     string
		temperature     *float64
		conditions      []string
		placeName       string
	)

	grp, gctx := errgroup.WithContext(ctx)

	if capturedAt != nil {
		grp.Go(func() error {
			r, s, err := g.fetchSunTimes(gctx, lat, lon, *capturedAt)
			if err != nil {
				g.log.Warn("sun lookup unavailable", zap.Error(err))
				return nil
			}
			sunrise, sunset = r, s
			return nil
		})
		grp.Go(func() error {
			desc, temp, conds, err := g.fetchWeather(gctx, lat, lon)
			if err != nil {
				g.log.Warn("weather lookup unavailable", zap.Error(err))
				return nil
			}
			weatherDesc, temperature, conditions = desc, temp, conds
			return nil
		})
	}
	grp.Go(func() error {
		name, err := g.fetchPlaceName(gctx, lat, lon)
		if err != nil {
			g.log.Warn("reverse geocode unavailable", zap.Error(err))
			return nil
		}
		placeName = name
		return nil
	})

	_ = grp.Wait() // workers swallow their own failures

	snap.Sunrise = sunrise
	snap.Sunset = sunset
	if capturedAt != nil && sunrise != nil && sunset != nil {
		day := IsDaytime(*capturedAt, *sunrise, *sunset)
		snap.IsDaytime = &day
	}
	snap.WeatherDescription = weatherDesc
	snap.TemperatureC = temperature
	snap.Conditions = conditions
	snap.PlaceName = placeName
	return snap
}

// sunResponse mirrors the sunrise-sunset.org JSON payload (formatted=0).
type sunResponse struct {
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
	Status string `json:"status"`
}

func (g *Gatherer) fetchSunTimes(ctx context.Context, lat, lon float64, capturedAt time.Time) (*time.Time, *time.Time, error) {
	u := fmt.Sprintf("%s/json?lat=%f&lng=%f&date=%s&formatted=0",
		g.sunBaseURL, lat, lon, capturedAt.UTC().Format("2006-01-02"))

	var resp sunResponse
	if err := g.getJSON(ctx, u, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Status != "OK" {
		return nil, nil, fmt.Errorf("sun API status %q", resp.Status)
	}
	sunrise, err := time.Parse(time.RFC3339, resp.Results.Sunrise)
	if err != nil {
		return nil, nil, fmt.Errorf("bad sunrise timestamp: %w", err)
	}
	sunset, err := time.Parse(time.RFC3339, resp.Results.Sunset)
	if err != nil {
		return nil, nil, fmt.Errorf("bad sunset timestamp: %w", err)
	}
	return &sunrise, &sunset, nil
}

// weatherResponse mirrors the OpenWeatherMap current-conditions payload.
type weatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

func (g *Gatherer) fetchWeather(ctx context.Context, lat, lon float64) (string, *float64, []string, error) {
	if g.weatherAPIKey == "" {
		return "", nil, nil, fmt.Errorf("weather API key not configured")
	}
	u := fmt.Sprintf("%s/data/2.5/weather?lat=%f&lon=%f&units=metric&appid=%s",
		g.weatherBaseURL, lat, lon, g.weatherAPIKey)

	var resp weatherResponse
	if err := g.getJSON(ctx, u, &resp); err != nil {
		return "", nil, nil, err
	}

	var desc string
	var conds []string
	for _, w := range resp.Weather {
		if desc == "" {
			desc = w.Description
		}
		if w.Main != "" {
			conds = append(conds, w.Main)
		}
	}
	temp := resp.Main.Temp
	return desc, &temp, conds, nil
}

// geocodeResponse mirrors the Nominatim reverse payload.
type geocodeResponse struct {
	DisplayName string `json:"display_name"`
}

func (g *Gatherer) fetchPlaceName(ctx context.Context, lat, lon float64) (string, error) {
	u := fmt.Sprintf("%s/reverse?lat=%f&lon=%f&format=json&zoom=14",
		g.geocodeBaseURL, lat, lon)

	var resp geocodeResponse
	if err := g.getJSON(ctx, u, &resp); err != nil {
		return "", err
	}
	if resp.DisplayName == "" {
		return "", fmt.Errorf("no place name for coordinate")
	}
	return resp.DisplayName, nil
}

func (g *Gatherer) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("bad request URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "seen-verification/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
