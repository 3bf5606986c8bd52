package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldsnap-trading/coldsnap/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCity() config.City {
	return config.City{Name: "Chicago", Slug: "chicago", Latitude: 41.8781, Longitude: -87.6298, Timezone: "America/Chicago", Country: "US"}
}

func TestFetchEnsembleParsesMembers(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"hourly": {
				"time": ["2025-02-20T00:00", "2025-02-20T01:00"],
				"temperature_2m_member00": [30.1, 31.2],
				"temperature_2m_member01": [29.8, 30.5],
				"temperature_2m_member02": [28.0, 29.0]
			}
		}`))
	}))
	defer srv.Close()

	client := NewEnsembleClient(srv.URL, 0, discard())
	model := config.EnsembleModel{Name: "GFS", MemberCount: 3, APIParam: "gfs_seamless"}

	forecast, err := client.FetchEnsemble(context.Background(), testCity(), model)
	require.NoError(t, err)

	assert.Equal(t, "chicago", forecast.City)
	assert.Equal(t, "GFS", forecast.Model)
	require.Len(t, forecast.Members, 3)
	assert.Equal(t, []float64{30.1, 31.2}, forecast.Members[0].Temperatures)
	assert.Equal(t, []string{"2025-02-20T00:00", "2025-02-20T01:00"}, forecast.Members[0].Times)
	assert.Equal(t, 2, forecast.Members[2].MemberIndex)

	assert.Contains(t, gotQuery, "temperature_unit=fahrenheit")
	assert.Contains(t, gotQuery, "models=gfs_seamless")
	assert.Contains(t, gotQuery, "forecast_days=7")
}

func TestFetchEnsembleSkipsMissingMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"hourly": {
				"time": ["2025-02-20T00:00"],
				"temperature_2m_member00": [30.1],
				"temperature_2m_member02": [28.0]
			}
		}`))
	}))
	defer srv.Close()

	client := NewEnsembleClient(srv.URL, 0, discard())
	model := config.EnsembleModel{Name: "GEM", MemberCount: 3, APIParam: "gem_global"}

	forecast, err := client.FetchEnsemble(context.Background(), testCity(), model)
	require.NoError(t, err)

	require.Len(t, forecast.Members, 2)
	assert.Equal(t, 0, forecast.Members[0].MemberIndex)
	assert.Equal(t, 2, forecast.Members[1].MemberIndex)
}

func TestFetchEnsembleContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewEnsembleClient(srv.URL, 0, discard())
	model := config.EnsembleModel{Name: "GFS", MemberCount: 1, APIParam: "gfs_seamless"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchEnsemble(ctx, testCity(), model)
	assert.Error(t, err)
}

func TestFetchHRRRDailyHighs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "models=ncep_hrrr_conus")
		assert.Contains(t, r.URL.RawQuery, "forecast_days=2")
		w.Write([]byte(`{
			"hourly": {
				"time": ["2025-02-20T10:00", "2025-02-20T14:00", "2025-02-21T13:00", "2025-02-21T15:00"],
				"temperature_2m": [28.0, 34.56, 40.0, 38.2]
			}
		}`))
	}))
	defer srv.Close()

	client := NewHRRRClient(srv.URL, 0, discard())

	results, err := client.FetchDeterministic(context.Background(), testCity(), 1)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "2025-02-20", results[0].Date)
	assert.Equal(t, 34.6, results[0].HighF) // rounded to 0.1
	assert.Equal(t, "2025-02-21", results[1].Date)
	assert.Equal(t, 40.0, results[1].HighF)
	assert.Equal(t, "hrrr", results[0].Source)
	assert.Equal(t, 18, results[0].HorizonHours)
}

func TestFetchHRRRSkipsNonUSCities(t *testing.T) {
	client := NewHRRRClient("http://unused", 0, discard())
	city := config.City{Name: "London", Slug: "london", Country: "GB"}

	results, err := client.FetchDeterministic(context.Background(), city, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}
