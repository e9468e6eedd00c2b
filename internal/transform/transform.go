// Package transform converts source records to target records. Each data
// flavor has a pure conversion function in the registry; records with no
// registered conversion are dropped with a warning.
package transform

import (
	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// Func converts one source record. A nil result drops the record.
type Func func(models.SourceRecord) models.TargetRecord

// Registry maps source categories to conversion functions.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry with the built-in quote and trade
// conversions.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register(models.CategoryAllPriceDepth, quoteToTarget)
	r.Register(models.CategoryTradeData, tradeToTarget)
	return r
}

// Register binds a conversion to a category, replacing any existing one.
func (r *Registry) Register(category string, fn Func) {
	r.funcs[category] = fn
}

// Apply converts every input record. Records of unregistered categories
// are dropped with a warning; the call fails only when there was input
// and nothing could be converted.
func (r *Registry) Apply(records []models.SourceRecord) ([]models.TargetRecord, error) {
	out := make([]models.TargetRecord, 0, len(records))
	dropped := 0
	for _, rec := range records {
		fn, ok := r.funcs[rec.SourceType()]
		if !ok {
			dropped++
			log.WithFields(log.Fields{"category": rec.SourceType(), "key": rec.PrimaryKey()}).
				Warn("no conversion registered, dropping record")
			continue
		}
		if tgt := fn(rec); tgt != nil {
			out = append(out, tgt)
		} else {
			dropped++
		}
	}

	if len(records) > 0 && len(out) == 0 {
		return nil, etlerr.New(etlerr.KindParse, "transform dropped all %d records", len(records))
	}
	if dropped > 0 {
		log.WithFields(log.Fields{"dropped": dropped, "converted": len(out)}).
			Warn("transform dropped records")
	}
	return out, nil
}

func quoteToTarget(rec models.SourceRecord) models.TargetRecord {
	msg, ok := rec.(*models.QuoteMessage)
	if !ok {
		return nil
	}
	q := models.NewQuoteRecord()
	q.BusinessDate = msg.BusinessDate
	q.ExchProductID = msg.ProductID
	q.ProductName = msg.ProductName
	q.MarketIndicator = msg.MarketIndicator
	q.BrokerID = msg.BrokerID
	q.QuoteStatus = msg.QuoteStatus
	q.MessageOffset = msg.MsgOffset
	q.DataSource = msg.SourceName
	q.EventTime = msg.EventTime
	q.ReceiveTime = msg.ReceiveTime
	for l := 0; l < models.QuoteLevels; l++ {
		q.SetLevel(l, msg.Bids[l], msg.Offers[l])
	}
	return q
}

func tradeToTarget(rec models.SourceRecord) models.TargetRecord {
	msg, ok := rec.(*models.TradeMessage)
	if !ok {
		return nil
	}
	return &models.TradeRecord{
		BusinessDate:    msg.BusinessDate,
		ExchProductID:   msg.ProductID,
		ProductName:     msg.ProductName,
		MarketIndicator: msg.MarketIndicator,
		TradeID:         msg.TradeID,
		TradeSide:       msg.Side,
		SettleSpeed:     msg.SettleSpeed,
		TradePrice:      msg.Price,
		TradeYield:      msg.Yield,
		YieldType:       msg.YieldType,
		TradeVolume:     msg.Volume,
		DealStatus:      msg.DealStatus,
		EventTime:       msg.EventTime,
		ReceiveTime:     msg.ReceiveTime,
	}
}
