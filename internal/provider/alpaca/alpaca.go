package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/newthinker/rotator/internal/core"
)

// barsClient is the part of the Alpaca market data client in use.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Alpaca fetches split and dividend adjusted daily bars.
type Alpaca struct {
	client barsClient
}

// New creates an Alpaca provider. Empty credentials fall back to the
// APCA_API_KEY_ID / APCA_API_SECRET_KEY environment variables.
func New(apiKey, apiSecret, baseURL string) *Alpaca {
	return &Alpaca{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

func (a *Alpaca) Name() string {
	return "alpaca"
}

func (a *Alpaca) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeframe, err := toTimeFrame(interval)
	if err != nil {
		return nil, err
	}

	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  timeframe,
		Start:      start,
		End:        end,
		Adjustment: marketdata.All,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars for %s: %w", symbol, err)
	}

	result := make([]core.OHLCV, 0, len(bars))
	for _, b := range bars {
		result = append(result, core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   int64(b.Volume),
			Time:     core.TruncateDay(b.Timestamp),
		})
	}
	return result, nil
}

func toTimeFrame(interval string) (marketdata.TimeFrame, error) {
	switch interval {
	case "", "1d":
		return marketdata.OneDay, nil
	case "1wk":
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case "1mo":
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported alpaca interval: %q", interval)
	}
}
