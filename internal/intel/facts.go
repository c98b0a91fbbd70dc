package intel

import (
	"context"

	"go.uber.org/zap"

	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/pkg/anthropic"
)

// extractFinancialFacts downloads one disclosure PDF and has the LLM read the
// latest revenue and headcount off it. Every failure returns nil: facts are a
// bonus, never a blocker. Quota errors are the exception and propagate so the
// caller stops issuing LLM calls.
func (p *Pipeline) extractFinancialFacts(ctx context.Context, pdfURL string) (*model.FinancialFacts, error) {
	pdf, err := p.fetch.FetchPDF(ctx, pdfURL)
	if err != nil {
		zap.L().Debug("disclosure pdf fetch failed", zap.String("url", pdfURL), zap.Error(err))
		return nil, nil
	}

	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.cfg.FactsModel,
		MaxTokens:   400,
		Temperature: floatPtr(0.0),
		Messages: []anthropic.Message{
			{Role: "user", Content: []anthropic.Block{
				{Text: FactsPrompt()},
				{PDF: pdf},
			}},
		},
	})
	if err != nil {
		if anthropic.IsQuotaExceeded(err) {
			return nil, err
		}
		zap.L().Warn("financial facts extraction failed", zap.String("url", pdfURL), zap.Error(err))
		return nil, nil
	}
	resp.Usage.LogCost(p.cfg.FactsModel, "financial_facts")

	var facts model.FinancialFacts
	if err := ParseLLMJSON(resp.Text, &facts); err != nil {
		zap.L().Warn("financial facts json unparsable", zap.String("url", pdfURL), zap.Error(err))
		return nil, nil
	}
	return &facts, nil
}

func floatPtr(f float64) *float64 { return &f }
