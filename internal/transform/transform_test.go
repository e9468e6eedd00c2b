package transform

import (
	"testing"
	"time"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

func sampleQuote() *models.QuoteMessage {
	msg := models.NewQuoteMessage()
	msg.MsgOffset = 7
	msg.ProductID = "210005.IB"
	msg.ProductName = "05 Treasury"
	msg.BrokerID = "B01"
	msg.SourceName = "depth"
	msg.BusinessDate = "2025.01.01"
	msg.EventTime = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	msg.ReceiveTime = msg.EventTime.Add(100 * time.Millisecond)
	msg.Bids[1] = models.QuoteSide{Price: 100.5, Yield: 2.85, YieldType: "YTM", Volume: 1000}
	msg.Offers[1] = models.QuoteSide{Price: 101.5, Yield: 2.80, YieldType: "YTM", Volume: 500}
	return msg
}

func sampleTrade() *models.TradeMessage {
	return &models.TradeMessage{
		TradeID:      "T001",
		ProductID:    "210005.IB",
		Side:         models.TradeSideGiven,
		SettleSpeed:  1,
		Price:        98.4289,
		Volume:       5000,
		SourceName:   "deals",
		BusinessDate: "2025.01.01",
		ReceiveTime:  time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestApplyQuote(t *testing.T) {
	t.Parallel()

	out, err := NewRegistry().Apply([]models.SourceRecord{sampleQuote()})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d records", len(out))
	}

	q, ok := out[0].(*models.QuoteRecord)
	if !ok {
		t.Fatalf("got %T", out[0])
	}
	if q.DataType() != models.DataTypeQuote {
		t.Errorf("dataType = %q", q.DataType())
	}
	if q.BusinessDate != "2025.01.01" || q.ExchProductID != "210005.IB" {
		t.Errorf("identity fields = %q %q", q.BusinessDate, q.ExchProductID)
	}
	if q.Bid1Price != 100.5 || q.Offer1Price != 101.5 {
		t.Errorf("level 1 = %v / %v", q.Bid1Price, q.Offer1Price)
	}
	if q.Bid1Volume != 1000 || q.Offer1Volume != 500 {
		t.Errorf("level 1 volumes = %v / %v", q.Bid1Volume, q.Offer1Volume)
	}
	if q.MessageOffset != 7 || q.DataSource != "depth" {
		t.Errorf("offset/source = %d %q", q.MessageOffset, q.DataSource)
	}
}

func TestApplyTrade(t *testing.T) {
	t.Parallel()

	out, err := NewRegistry().Apply([]models.SourceRecord{sampleTrade()})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	r, ok := out[0].(*models.TradeRecord)
	if !ok {
		t.Fatalf("got %T", out[0])
	}
	if r.TradeSide != models.TradeSideGiven || r.SettleSpeed != 1 {
		t.Errorf("side/speed = %q %d", r.TradeSide, r.SettleSpeed)
	}
	if r.TradePrice != 98.4289 || r.TradeVolume != 5000 {
		t.Errorf("price/volume = %v %v", r.TradePrice, r.TradeVolume)
	}
}

type unknownRecord struct{}

func (unknownRecord) Validate() error    { return nil }
func (unknownRecord) PrimaryKey() string { return "u" }
func (unknownRecord) SourceType() string { return "Mystery" }

func TestApplyDropsUnknownCategory(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	out, err := r.Apply([]models.SourceRecord{sampleTrade(), unknownRecord{}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("got %d records, want 1", len(out))
	}

	// whole input unconvertible: error
	if _, err := r.Apply([]models.SourceRecord{unknownRecord{}}); err == nil {
		t.Error("expected error when every record is dropped")
	}
}

func TestApplyEmptyInput(t *testing.T) {
	t.Parallel()

	out, err := NewRegistry().Apply(nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d records", len(out))
	}
}
