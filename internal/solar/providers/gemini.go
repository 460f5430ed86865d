package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

// ErrBillUnreadable is returned when the model answer holds no usable bill data.
var ErrBillUnreadable = errors.New("could not read bill")

const billPrompt = `Analyze this energy bill and extract the following data as a pure JSON object:
{
  "monthlyConsumptionKwh": number (monthly consumption in kWh),
  "energyRate": number (price per kWh),
  "totalAmount": number (total amount due),
  "currency": string (e.g. "COP", "USD"),
  "billingPeriod": string (e.g. "January 2024"),
  "provider": string (name of the energy company)
}
If a value is not visible, use null. Answer ONLY with the JSON object.`

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBillAnalyzer implements solar.BillAnalyzer with Google Gemini.
type GeminiBillAnalyzer struct {
	models contentGenerator
	model  string
}

// NewGeminiBillAnalyzer creates an analyzer; model defaults to gemini-2.5-flash.
func NewGeminiBillAnalyzer(ctx context.Context, apiKey, model string) (*GeminiBillAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiBillAnalyzer{models: client.Models, model: model}, nil
}

func (a *GeminiBillAnalyzer) AnalyzeBill(ctx context.Context, image []byte, mimeType string) (solar.BillData, error) {
	if len(image) == 0 {
		return solar.BillData{}, fmt.Errorf("%w: empty image", ErrBillUnreadable)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(billPrompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	resp, err := a.models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return solar.BillData{}, fmt.Errorf("gemini generate content: %w", err)
	}

	return parseBillAnswer(resp.Text())
}

// parseBillAnswer extracts the first JSON object from the model text.
func parseBillAnswer(text string) (solar.BillData, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		raw = strings.TrimSpace(text)
	}

	var data solar.BillData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return solar.BillData{}, fmt.Errorf("%w: %v", ErrBillUnreadable, err)
	}
	if data.MonthlyConsumptionKwh == nil && data.TotalAmount == nil && data.EnergyRate == nil {
		return solar.BillData{}, fmt.Errorf("%w: no consumption or amount found", ErrBillUnreadable)
	}
	return data, nil
}
