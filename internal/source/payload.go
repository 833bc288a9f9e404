package source

import (
	"encoding/json"
	"slices"
	"strings"
)

// Known lists the data source identifiers the backend accepts for refresh.
var Known = []string{"weather", "meteo", "marine", "airquality", "fire"}

// Dashboard is the composite snapshot served by the dashboard endpoint.
// Weather readings and source statuses are decoded for display; the other
// record kinds are passed through untouched.
type Dashboard struct {
	RecentWeatherData    []WeatherReading   `json:"recentWeatherData"`
	RecentMeteoData      []json.RawMessage  `json:"recentMeteoData"`
	RecentMarineData     []json.RawMessage  `json:"recentMarineData"`
	RecentAirQualityData []json.RawMessage  `json:"recentAirQualityData"`
	RecentFireData       []json.RawMessage  `json:"recentFireData"`
	ActiveWebcams        []json.RawMessage  `json:"activeWebcams"`
	DataSourceStatuses   []DataSourceStatus `json:"dataSourceStatuses"`
}

// WeatherReading is a single weather station observation.
type WeatherReading struct {
	ID                int64   `json:"id"`
	StationID         string  `json:"stationId"`
	Timestamp         Time    `json:"timestamp"`
	Temperature       float64 `json:"temperature"`
	Humidity          float64 `json:"humidity"`
	Pressure          float64 `json:"pressure"`
	WindSpeed         float64 `json:"windSpeed"`
	WindDirection     float64 `json:"windDirection"`
	Visibility        float64 `json:"visibility"`
	WeatherConditions string  `json:"weatherConditions"`
	CreatedAt         Time    `json:"createdAt"`
}

// DataSourceStatus reports the collection health of one upstream source.
type DataSourceStatus struct {
	SourceName          string `json:"sourceName"`
	LastSuccessfulFetch *Time  `json:"lastSuccessfulFetch,omitempty"`
	LastError           *Time  `json:"lastError,omitempty"`
	ErrorMessage        string `json:"errorMessage,omitempty"`
	IsActive            bool   `json:"isActive"`
	FetchCount          int    `json:"fetchCount"`
	ErrorCount          int    `json:"errorCount"`
}

// Section is a named record count within a Dashboard.
type Section struct {
	Name  string
	Count int
}

// Sections returns the record count of every dashboard section in display
// order.
func (d *Dashboard) Sections() []Section {
	if d == nil {
		return nil
	}
	return []Section{
		{Name: "weather", Count: len(d.RecentWeatherData)},
		{Name: "meteo", Count: len(d.RecentMeteoData)},
		{Name: "marine", Count: len(d.RecentMarineData)},
		{Name: "air quality", Count: len(d.RecentAirQualityData)},
		{Name: "fire", Count: len(d.RecentFireData)},
		{Name: "webcams", Count: len(d.ActiveWebcams)},
	}
}

// Status returns the status reported for the named source, matching
// case-insensitively on the source name.
func (d *Dashboard) Status(name string) (DataSourceStatus, bool) {
	if d == nil {
		return DataSourceStatus{}, false
	}
	for _, s := range d.DataSourceStatuses {
		if strings.EqualFold(s.SourceName, name) {
			return s, true
		}
	}
	return DataSourceStatus{}, false
}

// LatestWeather returns up to n weather readings, newest first.
func (d *Dashboard) LatestWeather(n int) []WeatherReading {
	if d == nil || n <= 0 {
		return nil
	}
	readings := append([]WeatherReading(nil), d.RecentWeatherData...)
	slices.SortStableFunc(readings, func(a, b WeatherReading) int {
		return b.Timestamp.Compare(a.Timestamp.Time)
	})
	if len(readings) > n {
		readings = readings[:n]
	}
	return readings
}
