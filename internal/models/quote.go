package models

import (
	"fmt"
	"math"
	"time"
)

// QuoteLevels is the number of depth levels a quote message carries.
// Level 0 holds the best quotes, which may be non-tradable; levels 1..5
// hold tradable depth.
const QuoteLevels = 6

// QuoteSide is one side of one depth level.
type QuoteSide struct {
	Price     float64
	Yield     float64
	YieldType string
	Volume    float64
}

func emptySide() QuoteSide {
	return QuoteSide{Price: math.NaN(), Yield: math.NaN(), Volume: math.NaN()}
}

// QuoteMessage is the source-side quote: every level/side row sharing one
// message offset folded into a single record.
type QuoteMessage struct {
	MsgOffset       int64
	ProductID       string
	ProductName     string
	MarketIndicator string
	BrokerID        string
	QuoteStatus     string
	SourceName      string
	BusinessDate    string
	EventTime       time.Time
	ReceiveTime     time.Time
	Bids            [QuoteLevels]QuoteSide
	Offers          [QuoteLevels]QuoteSide
}

// NewQuoteMessage returns a message with every numeric slot unset (NaN).
func NewQuoteMessage() *QuoteMessage {
	m := &QuoteMessage{}
	for l := 0; l < QuoteLevels; l++ {
		m.Bids[l] = emptySide()
		m.Offers[l] = emptySide()
	}
	return m
}

func (m *QuoteMessage) Validate() error {
	if m.ProductID == "" {
		return fmt.Errorf("quote message %d has no product id", m.MsgOffset)
	}
	if m.MsgOffset <= 0 {
		return fmt.Errorf("quote message for %s has non-positive offset %d", m.ProductID, m.MsgOffset)
	}
	if m.ReceiveTime.IsZero() {
		return fmt.Errorf("quote message %d has no receive time", m.MsgOffset)
	}
	return nil
}

func (m *QuoteMessage) PrimaryKey() string {
	return fmt.Sprintf("%s|%s|%d", m.BusinessDate, m.ProductID, m.MsgOffset)
}

func (m *QuoteMessage) SourceType() string { return CategoryAllPriceDepth }

// QuoteRecord is the target-side quote in its flat wire layout. The col
// tag carries the column order and wire name consumed by the column
// resolver; untagged fields stay off the wire.
type QuoteRecord struct {
	BusinessDate    string    `col:"0,business_date"`
	ExchProductID   string    `col:"1,exch_product_id"`
	ProductName     string    `col:"2,product_name"`
	MarketIndicator string    `col:"3,market_indicator"`
	BrokerID        string    `col:"4,broker_id"`
	QuoteStatus     string    `col:"5,quote_status"`
	MessageOffset   int64     `col:"6,message_offset"`
	DataSource      string    `col:"7,data_source"`
	EventTime       time.Time `col:"8,event_time"`
	ReceiveTime     time.Time `col:"9,receive_time"`

	Bid0Price       float64 `col:"10,bid_0_price"`
	Bid0Yield       float64 `col:"11,bid_0_yield"`
	Bid0YieldType   string  `col:"12,bid_0_yield_type"`
	Bid0Volume      float64 `col:"13,bid_0_volume"`
	Offer0Price     float64 `col:"14,offer_0_price"`
	Offer0Yield     float64 `col:"15,offer_0_yield"`
	Offer0YieldType string  `col:"16,offer_0_yield_type"`
	Offer0Volume    float64 `col:"17,offer_0_volume"`

	Bid1Price       float64 `col:"18,bid_1_price"`
	Bid1Yield       float64 `col:"19,bid_1_yield"`
	Bid1YieldType   string  `col:"20,bid_1_yield_type"`
	Bid1Volume      float64 `col:"21,bid_1_volume"`
	Offer1Price     float64 `col:"22,offer_1_price"`
	Offer1Yield     float64 `col:"23,offer_1_yield"`
	Offer1YieldType string  `col:"24,offer_1_yield_type"`
	Offer1Volume    float64 `col:"25,offer_1_volume"`

	Bid2Price       float64 `col:"26,bid_2_price"`
	Bid2Yield       float64 `col:"27,bid_2_yield"`
	Bid2YieldType   string  `col:"28,bid_2_yield_type"`
	Bid2Volume      float64 `col:"29,bid_2_volume"`
	Offer2Price     float64 `col:"30,offer_2_price"`
	Offer2Yield     float64 `col:"31,offer_2_yield"`
	Offer2YieldType string  `col:"32,offer_2_yield_type"`
	Offer2Volume    float64 `col:"33,offer_2_volume"`

	Bid3Price       float64 `col:"34,bid_3_price"`
	Bid3Yield       float64 `col:"35,bid_3_yield"`
	Bid3YieldType   string  `col:"36,bid_3_yield_type"`
	Bid3Volume      float64 `col:"37,bid_3_volume"`
	Offer3Price     float64 `col:"38,offer_3_price"`
	Offer3Yield     float64 `col:"39,offer_3_yield"`
	Offer3YieldType string  `col:"40,offer_3_yield_type"`
	Offer3Volume    float64 `col:"41,offer_3_volume"`

	Bid4Price       float64 `col:"42,bid_4_price"`
	Bid4Yield       float64 `col:"43,bid_4_yield"`
	Bid4YieldType   string  `col:"44,bid_4_yield_type"`
	Bid4Volume      float64 `col:"45,bid_4_volume"`
	Offer4Price     float64 `col:"46,offer_4_price"`
	Offer4Yield     float64 `col:"47,offer_4_yield"`
	Offer4YieldType string  `col:"48,offer_4_yield_type"`
	Offer4Volume    float64 `col:"49,offer_4_volume"`

	Bid5Price       float64 `col:"50,bid_5_price"`
	Bid5Yield       float64 `col:"51,bid_5_yield"`
	Bid5YieldType   string  `col:"52,bid_5_yield_type"`
	Bid5Volume      float64 `col:"53,bid_5_volume"`
	Offer5Price     float64 `col:"54,offer_5_price"`
	Offer5Yield     float64 `col:"55,offer_5_yield"`
	Offer5YieldType string  `col:"56,offer_5_yield_type"`
	Offer5Volume    float64 `col:"57,offer_5_volume"`
}

// NewQuoteRecord returns a record with every numeric slot unset (NaN).
func NewQuoteRecord() *QuoteRecord {
	q := &QuoteRecord{}
	for l := 0; l < QuoteLevels; l++ {
		q.SetLevel(l, emptySide(), emptySide())
	}
	return q
}

// SetLevel copies one depth level into the flat wire fields. Levels
// outside 0..5 are ignored.
func (q *QuoteRecord) SetLevel(level int, bid, offer QuoteSide) {
	switch level {
	case 0:
		q.Bid0Price, q.Bid0Yield, q.Bid0YieldType, q.Bid0Volume = bid.Price, bid.Yield, bid.YieldType, bid.Volume
		q.Offer0Price, q.Offer0Yield, q.Offer0YieldType, q.Offer0Volume = offer.Price, offer.Yield, offer.YieldType, offer.Volume
	case 1:
		q.Bid1Price, q.Bid1Yield, q.Bid1YieldType, q.Bid1Volume = bid.Price, bid.Yield, bid.YieldType, bid.Volume
		q.Offer1Price, q.Offer1Yield, q.Offer1YieldType, q.Offer1Volume = offer.Price, offer.Yield, offer.YieldType, offer.Volume
	case 2:
		q.Bid2Price, q.Bid2Yield, q.Bid2YieldType, q.Bid2Volume = bid.Price, bid.Yield, bid.YieldType, bid.Volume
		q.Offer2Price, q.Offer2Yield, q.Offer2YieldType, q.Offer2Volume = offer.Price, offer.Yield, offer.YieldType, offer.Volume
	case 3:
		q.Bid3Price, q.Bid3Yield, q.Bid3YieldType, q.Bid3Volume = bid.Price, bid.Yield, bid.YieldType, bid.Volume
		q.Offer3Price, q.Offer3Yield, q.Offer3YieldType, q.Offer3Volume = offer.Price, offer.Yield, offer.YieldType, offer.Volume
	case 4:
		q.Bid4Price, q.Bid4Yield, q.Bid4YieldType, q.Bid4Volume = bid.Price, bid.Yield, bid.YieldType, bid.Volume
		q.Offer4Price, q.Offer4Yield, q.Offer4YieldType, q.Offer4Volume = offer.Price, offer.Yield, offer.YieldType, offer.Volume
	case 5:
		q.Bid5Price, q.Bid5Yield, q.Bid5YieldType, q.Bid5Volume = bid.Price, bid.Yield, bid.YieldType, bid.Volume
		q.Offer5Price, q.Offer5Yield, q.Offer5YieldType, q.Offer5Volume = offer.Price, offer.Yield, offer.YieldType, offer.Volume
	}
}

func (q *QuoteRecord) Validate() error {
	if q.BusinessDate == "" {
		return fmt.Errorf("quote record %d has no business date", q.MessageOffset)
	}
	if q.ExchProductID == "" {
		return fmt.Errorf("quote record %d has no product id", q.MessageOffset)
	}
	return nil
}

func (q *QuoteRecord) DataType() string { return DataTypeQuote }
