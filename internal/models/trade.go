package models

import (
	"fmt"
	"time"
)

// Trade sides after direction-code translation.
const (
	TradeSideTaken = "TKN"
	TradeSideGiven = "GVN"
	TradeSideTrade = "TRD"
	TradeSideDone  = "DONE"
)

// TradeMessage is the source-side trade, one CSV row per message.
type TradeMessage struct {
	TradeID         string
	ProductID       string
	ProductName     string
	MarketIndicator string
	Side            string
	SettleSpeed     int64
	Price           float64
	Yield           float64
	YieldType       string
	Volume          float64
	DealStatus      string
	SourceName      string
	BusinessDate    string
	EventTime       time.Time
	ReceiveTime     time.Time
}

func (m *TradeMessage) Validate() error {
	if m.TradeID == "" {
		return fmt.Errorf("trade for %s has no trade id", m.ProductID)
	}
	if m.ProductID == "" {
		return fmt.Errorf("trade %s has no product id", m.TradeID)
	}
	switch m.Side {
	case TradeSideTaken, TradeSideGiven, TradeSideTrade, TradeSideDone:
	default:
		return fmt.Errorf("trade %s has unknown side %q", m.TradeID, m.Side)
	}
	if m.SettleSpeed != 0 && m.SettleSpeed != 1 {
		return fmt.Errorf("trade %s has unknown settle speed %d", m.TradeID, m.SettleSpeed)
	}
	return nil
}

func (m *TradeMessage) PrimaryKey() string {
	return fmt.Sprintf("%s|%s", m.BusinessDate, m.TradeID)
}

func (m *TradeMessage) SourceType() string { return CategoryTradeData }

// TradeRecord is the target-side trade in its wire layout.
type TradeRecord struct {
	BusinessDate    string    `col:"0,business_date"`
	ExchProductID   string    `col:"1,exch_product_id"`
	ProductName     string    `col:"2,product_name"`
	MarketIndicator string    `col:"3,market_indicator"`
	TradeID         string    `col:"4,trade_id"`
	TradeSide       string    `col:"5,trade_side"`
	SettleSpeed     int64     `col:"6,settle_speed"`
	TradePrice      float64   `col:"7,trade_price"`
	TradeYield      float64   `col:"8,trade_yield"`
	YieldType       string    `col:"9,yield_type"`
	TradeVolume     float64   `col:"10,trade_volume"`
	DealStatus      string    `col:"11,deal_status"`
	EventTime       time.Time `col:"12,event_time"`
	ReceiveTime     time.Time `col:"13,receive_time"`
}

func (r *TradeRecord) Validate() error {
	if r.BusinessDate == "" {
		return fmt.Errorf("trade record %s has no business date", r.TradeID)
	}
	if r.TradeID == "" {
		return fmt.Errorf("trade record for %s has no trade id", r.ExchProductID)
	}
	switch r.TradeSide {
	case TradeSideTaken, TradeSideGiven, TradeSideTrade, TradeSideDone:
	default:
		return fmt.Errorf("trade record %s has unknown side %q", r.TradeID, r.TradeSide)
	}
	return nil
}

func (r *TradeRecord) DataType() string { return DataTypeTrade }
