package extractor

import (
	"fmt"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/csvstream"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// tradeConverter maps one row to one trade message. Settlement strings
// translate to day counts and single-letter direction codes to the
// canonical sides.
type tradeConverter struct {
	src  *config.Source
	date dates.Date

	records []models.SourceRecord
}

func newTradeConverter(src *config.Source, date dates.Date) converter {
	return &tradeConverter{src: src, date: date}
}

func (c *tradeConverter) requires() []string {
	return []string{
		"trade_id", "product_id", "product_name", "market_indicator",
		"side", "set_days", "net_price", "yield", "yield_type",
		"deal_size", "deal_status", "deal_time", "receive_time", c.src.DateField,
	}
}

func settleSpeed(setDays string) (int64, error) {
	switch setDays {
	case "T+0":
		return 0, nil
	case "T+1":
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown settlement type %q", setDays)
	}
}

func tradeSide(code string) (string, error) {
	switch code {
	case "X":
		return models.TradeSideTaken, nil
	case "Y":
		return models.TradeSideGiven, nil
	case "Z":
		return models.TradeSideTrade, nil
	case "D":
		return models.TradeSideDone, nil
	default:
		return "", fmt.Errorf("unknown direction code %q", code)
	}
}

func (c *tradeConverter) consume(row csvstream.Row) error {
	speed, err := settleSpeed(row.String("set_days"))
	if err != nil {
		return err
	}
	side, err := tradeSide(row.String("side"))
	if err != nil {
		return err
	}
	price, err := row.Float("net_price")
	if err != nil {
		return err
	}
	yield, err := row.Float("yield")
	if err != nil {
		return err
	}
	size, err := row.Float("deal_size")
	if err != nil {
		return err
	}
	dealTime, err := row.TimeFlexible("deal_time")
	if err != nil {
		return err
	}
	receiveTime, err := row.TimeFlexible("receive_time")
	if err != nil {
		return err
	}

	c.records = append(c.records, &models.TradeMessage{
		TradeID:         row.String("trade_id"),
		ProductID:       ensureIBSuffix(row.String("product_id")),
		ProductName:     row.String("product_name"),
		MarketIndicator: row.String("market_indicator"),
		Side:            side,
		SettleSpeed:     speed,
		Price:           price,
		Yield:           yield,
		YieldType:       row.String("yield_type"),
		Volume:          size,
		DealStatus:      row.String("deal_status"),
		SourceName:      c.src.Name,
		BusinessDate:    c.date.Dotted(),
		EventTime:       dealTime,
		ReceiveTime:     receiveTime,
	})
	return nil
}

func (c *tradeConverter) finish() []models.SourceRecord { return c.records }
