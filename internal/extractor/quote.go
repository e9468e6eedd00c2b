package extractor

import (
	"fmt"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/csvstream"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// quoteConverter folds level/side-keyed depth rows into one quote message
// per msg_offset. Level 0 is the best (possibly non-tradable) quote,
// levels 1..5 are tradable depth; side 0 is bid, side 1 is offer.
type quoteConverter struct {
	src  *config.Source
	date dates.Date

	groups map[int64]*models.QuoteMessage
	order  []int64
}

func newQuoteConverter(src *config.Source, date dates.Date) converter {
	return &quoteConverter{
		src:    src,
		date:   date,
		groups: make(map[int64]*models.QuoteMessage),
	}
}

func (c *quoteConverter) requires() []string {
	return []string{
		"msg_offset", "product_id", "product_name", "market_indicator",
		"broker_id", "quote_status", "level", "side",
		"price", "yield", "yield_type", "volume",
		"quote_time", "receive_time", c.src.DateField,
	}
}

func (c *quoteConverter) consume(row csvstream.Row) error {
	offset, err := row.Int("msg_offset")
	if err != nil {
		return err
	}

	level, err := row.Int("level")
	if err != nil {
		return err
	}
	if level < 0 || level >= models.QuoteLevels {
		return fmt.Errorf("level %d out of range 0..%d", level, models.QuoteLevels-1)
	}

	side, err := row.Int("side")
	if err != nil {
		return err
	}
	if side != 0 && side != 1 {
		return fmt.Errorf("side %d is neither 0 (bid) nor 1 (offer)", side)
	}

	price, err := row.Float("price")
	if err != nil {
		return err
	}
	yield, err := row.Float("yield")
	if err != nil {
		return err
	}
	volume, err := row.Float("volume")
	if err != nil {
		return err
	}
	quoteTime, err := row.TimeFlexible("quote_time")
	if err != nil {
		return err
	}
	receiveTime, err := row.TimeFlexible("receive_time")
	if err != nil {
		return err
	}

	msg, ok := c.groups[offset]
	if !ok {
		msg = models.NewQuoteMessage()
		msg.MsgOffset = offset
		msg.ProductID = ensureIBSuffix(row.String("product_id"))
		msg.ProductName = row.String("product_name")
		msg.MarketIndicator = row.String("market_indicator")
		msg.BrokerID = row.String("broker_id")
		msg.QuoteStatus = row.String("quote_status")
		msg.SourceName = c.src.Name
		msg.BusinessDate = c.date.Dotted()
		c.groups[offset] = msg
		c.order = append(c.order, offset)
	}

	quote := models.QuoteSide{Price: price, Yield: yield, YieldType: row.String("yield_type"), Volume: volume}
	if side == 0 {
		msg.Bids[level] = quote
	} else {
		msg.Offers[level] = quote
	}

	// Group timestamps are the earliest seen across its rows.
	if !quoteTime.IsZero() && (msg.EventTime.IsZero() || quoteTime.Before(msg.EventTime)) {
		msg.EventTime = quoteTime
	}
	if !receiveTime.IsZero() && (msg.ReceiveTime.IsZero() || receiveTime.Before(msg.ReceiveTime)) {
		msg.ReceiveTime = receiveTime
	}
	return nil
}

func (c *quoteConverter) finish() []models.SourceRecord {
	out := make([]models.SourceRecord, 0, len(c.order))
	for _, offset := range c.order {
		out = append(out, c.groups[offset])
	}
	return out
}
