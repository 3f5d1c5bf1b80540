package weather

import (
	"github.com/fairweather/fairweather/internal/forecast"
	"github.com/fairweather/fairweather/internal/places"
)

// Assemble builds the client response. A nil current yields all-null
// conditions and a nil days slice yields an empty forecast.
func Assemble(loc places.Candidate, current *CurrentConditions, days []forecast.Day) Response {
	resp := Response{
		Location: Location{
			Name:    loc.Name,
			Country: loc.Country,
			State:   loc.State,
			Lat:     loc.Lat,
			Lon:     loc.Lon,
		},
		Forecast: days,
	}

	if current != nil {
		resp.Current = Current{
			Temp:        current.Temp,
			Humidity:    current.Humidity,
			Description: current.Description,
			Icon:        current.Icon,
			FeelsLike:   current.FeelsLike,
			WindSpeed:   current.WindSpeed,
		}
	}

	if resp.Forecast == nil {
		resp.Forecast = []forecast.Day{}
	}
	return resp
}
