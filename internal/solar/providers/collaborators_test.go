package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text     string
	err      error
	gotModel string
	gotParts int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	if len(contents) > 0 {
		f.gotParts = len(contents[0].Parts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(f.text, genai.RoleModel),
		}},
	}, nil
}

func TestGeminiBillAnalyzer(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"monthlyConsumptionKwh\": 287, \"energyRate\": 812.4, \"totalAmount\": 233158, \"currency\": \"COP\", \"billingPeriod\": \"Enero 2024\", \"provider\": \"Enel\"}\n```"}
	a := &GeminiBillAnalyzer{models: gen, model: "gemini-2.5-flash"}

	data, err := a.AnalyzeBill(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)

	require.NotNil(t, data.MonthlyConsumptionKwh)
	assert.Equal(t, 287.0, *data.MonthlyConsumptionKwh)
	assert.Equal(t, "COP", data.Currency)
	assert.Equal(t, "Enel", data.Provider)
	assert.Equal(t, "gemini-2.5-flash", gen.gotModel)
	assert.Equal(t, 2, gen.gotParts, "prompt and image")
}

func TestGeminiBillAnalyzerErrors(t *testing.T) {
	a := &GeminiBillAnalyzer{models: &fakeGenerator{}, model: "m"}
	_, err := a.AnalyzeBill(context.Background(), nil, "image/png")
	require.ErrorIs(t, err, ErrBillUnreadable)

	a = &GeminiBillAnalyzer{models: &fakeGenerator{err: errors.New("quota")}, model: "m"}
	_, err = a.AnalyzeBill(context.Background(), []byte{1}, "image/png")
	require.ErrorContains(t, err, "quota")
}

func TestParseBillAnswer(t *testing.T) {
	_, err := parseBillAnswer("I cannot read this bill")
	require.ErrorIs(t, err, ErrBillUnreadable)

	_, err = parseBillAnswer(`{"monthlyConsumptionKwh": null, "currency": "USD"}`)
	require.ErrorIs(t, err, ErrBillUnreadable)

	data, err := parseBillAnswer(`{"monthlyConsumptionKwh": 410.5, "energyRate": null}`)
	require.NoError(t, err)
	assert.Equal(t, 410.5, *data.MonthlyConsumptionKwh)
	assert.Nil(t, data.EnergyRate)
}

func TestGoogleGeocoder(t *testing.T) {
	var got geocoder.Address
	g := &GoogleGeocoder{lookup: func(a geocoder.Address) (geocoder.Location, error) {
		got = a
		return geocoder.Location{Latitude: 6.2442, Longitude: -75.5812}, nil
	}}

	lat, lon, err := g.Geocode(context.Background(), "  Carrera 43A #1-50, Medellín ")
	require.NoError(t, err)
	assert.Equal(t, 6.2442, lat)
	assert.Equal(t, -75.5812, lon)
	assert.Equal(t, "Carrera 43A #1-50, Medellín", got.Street)

	_, _, err = g.Geocode(context.Background(), " ")
	require.Error(t, err)

	g.lookup = func(geocoder.Address) (geocoder.Location, error) { return geocoder.Location{}, nil }
	_, _, err = g.Geocode(context.Background(), "nowhere")
	require.ErrorContains(t, err, "no result")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = g.Geocode(ctx, "anywhere")
	require.ErrorIs(t, err, context.Canceled)
}
