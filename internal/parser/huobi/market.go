package huobi

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type spotBBOTick struct {
	Bid       decode.Number `json:"bid"`
	BidSize   decode.Number `json:"bidSize"`
	Ask       decode.Number `json:"ask"`
	AskSize   decode.Number `json:"askSize"`
	QuoteTime int64         `json:"quoteTime"`
}

// Derivative BBO sides are [price, contracts].
type contractBBOTick struct {
	Bid []decode.Number `json:"bid"`
	Ask []decode.Number `json:"ask"`
	Ts  int64           `json:"ts"`
}

func (Parser) ParseBBO(marketType model.MarketType, raw []byte, ts *int64) ([]model.BBO, error) {
	switch marketType {
	case model.MarketTypeSpot:
		var msg envelope[spotBBOTick]
		if err := decode.JSON(Exchange, raw, &msg); err != nil {
			return nil, err
		}
		bbo, err := newBBO(marketType, msg.Ch)
		if err != nil {
			return nil, err
		}
		s := decode.BaseSizer(marketType)
		bid, err := decode.Levels(Exchange, "bid", [][]decode.Number{{msg.Tick.Bid, msg.Tick.BidSize}}, s)
		if err != nil {
			return nil, err
		}
		ask, err := decode.Levels(Exchange, "ask", [][]decode.Number{{msg.Tick.Ask, msg.Tick.AskSize}}, s)
		if err != nil {
			return nil, err
		}
		fill(&bbo, bid[0], ask[0])
		if bbo.Timestamp, err = decode.Timestamp(Exchange, decode.First(msg.Tick.QuoteTime, msg.Ts), ts); err != nil {
			return nil, err
		}
		return []model.BBO{bbo}, nil
	case model.MarketTypeInverseFuture, model.MarketTypeInverseSwap,
		model.MarketTypeLinearFuture, model.MarketTypeLinearSwap, model.MarketTypeEuropeanOption:
		var msg envelope[contractBBOTick]
		if err := decode.JSON(Exchange, raw, &msg); err != nil {
			return nil, err
		}
		bbo, err := newBBO(marketType, msg.Ch)
		if err != nil {
			return nil, err
		}
		s, err := sizer(marketType, bbo.Symbol)
		if err != nil {
			return nil, err
		}
		bid, err := decode.Levels(Exchange, "bid", [][]decode.Number{msg.Tick.Bid}, s)
		if err != nil {
			return nil, err
		}
		ask, err := decode.Levels(Exchange, "ask", [][]decode.Number{msg.Tick.Ask}, s)
		if err != nil {
			return nil, err
		}
		fill(&bbo, bid[0], ask[0])
		if bbo.Timestamp, err = decode.Timestamp(Exchange, decode.First(msg.Tick.Ts, msg.Ts), ts); err != nil {
			return nil, err
		}
		return []model.BBO{bbo}, nil
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeBBO))
	}
}

func newBBO(marketType model.MarketType, ch string) (model.BBO, error) {
	symbol, err := symbolOf(ch)
	if err != nil {
		return model.BBO{}, err
	}
	return model.BBO{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
	}, nil
}

func fill(bbo *model.BBO, bid, ask model.Order) {
	bbo.BidPrice, bbo.BidQuantity = bid.Price, bid.QuantityBase
	bbo.AskPrice, bbo.AskQuantity = ask.Price, ask.QuantityBase
}

// detail volumes: spot "amount" is base and "vol" is quote; derivative
// "amount" is base, "vol" is contracts and "trade_turnover" is quote.
type detailTick struct {
	Open     decode.Number `json:"open"`
	High     decode.Number `json:"high"`
	Low      decode.Number `json:"low"`
	Close    decode.Number `json:"close"`
	Amount   decode.Number `json:"amount"`
	Vol      decode.Number `json:"vol"`
	Turnover decode.Number `json:"trade_turnover"`
	Ts       int64         `json:"ts"`
}

func (Parser) ParseTicker(marketType model.MarketType, raw []byte) ([]model.Ticker, error) {
	switch marketType {
	case model.MarketTypeSpot, model.MarketTypeInverseFuture, model.MarketTypeInverseSwap,
		model.MarketTypeLinearFuture, model.MarketTypeLinearSwap, model.MarketTypeEuropeanOption:
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeTicker))
	}

	var msg envelope[detailTick]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	symbol, err := symbolOf(msg.Ch)
	if err != nil {
		return nil, err
	}
	t := model.Ticker{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
	}
	for _, f := range []struct {
		name string
		n    decode.Number
		dst  *float64
	}{
		{"open", msg.Tick.Open, &t.Open},
		{"high", msg.Tick.High, &t.High},
		{"low", msg.Tick.Low, &t.Low},
		{"close", msg.Tick.Close, &t.Close},
		{"amount", msg.Tick.Amount, &t.Volume},
	} {
		if *f.dst, err = decode.NonNegative(Exchange, f.name, f.n); err != nil {
			return nil, err
		}
	}

	switch {
	case marketType == model.MarketTypeSpot:
		t.QuoteVolume, err = decode.NonNegative(Exchange, "vol", msg.Tick.Vol)
	case msg.Tick.Turnover.IsSet():
		t.QuoteVolume, err = decode.NonNegative(Exchange, "trade_turnover", msg.Tick.Turnover)
	case marketType.IsInverse():
		var s decode.Sizer
		if s, err = sizer(marketType, symbol); err != nil {
			return nil, err
		}
		var vol float64
		if vol, err = decode.NonNegative(Exchange, "vol", msg.Tick.Vol); err != nil {
			return nil, err
		}
		_, t.QuoteVolume, _ = s.Sizes(t.Close, vol)
	default:
		t.QuoteVolume = t.Volume * t.Close
	}
	if err != nil {
		return nil, err
	}

	if t.Timestamp, err = decode.Timestamp(Exchange, msg.Ts, nil); err != nil {
		return nil, err
	}
	return []model.Ticker{t}, nil
}

type fundingNotify struct {
	Topic string `json:"topic"`
	Ts    int64  `json:"ts"`
	Data  []struct {
		ContractCode   string        `json:"contract_code"`
		FundingRate    decode.Number `json:"funding_rate"`
		EstimatedRate  decode.Number `json:"estimated_rate"`
		FundingTime    decode.Number `json:"funding_time"`
		SettlementTime decode.Number `json:"settlement_time"`
	} `json:"data"`
}

// ParseFundingRate decodes public.<contract>.funding_rate notifications.
// Only perpetual swaps have funding rates.
func (Parser) ParseFundingRate(marketType model.MarketType, raw []byte) ([]model.FundingRate, error) {
	switch marketType {
	case model.MarketTypeInverseSwap, model.MarketTypeLinearSwap:
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeFundingRate))
	}

	var msg fundingNotify
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	ts, err := decode.Timestamp(Exchange, msg.Ts, nil)
	if err != nil {
		return nil, err
	}
	rates := make([]model.FundingRate, 0, len(msg.Data))
	for _, d := range msg.Data {
		symbol := d.ContractCode
		if symbol == "" {
			if symbol, err = symbolOf(msg.Topic); err != nil {
				return nil, err
			}
		}
		rate, err := decode.Float(Exchange, "funding_rate", d.FundingRate)
		if err != nil {
			return nil, err
		}
		estimated, err := decode.OptionalFloat(Exchange, "estimated_rate", d.EstimatedRate)
		if err != nil {
			return nil, err
		}
		when := d.SettlementTime
		if !when.IsSet() {
			when = d.FundingTime
		}
		fundingTime, err := decode.Int(Exchange, "settlement_time", when)
		if err != nil {
			return nil, err
		}
		rates = append(rates, model.FundingRate{
			Exchange:      Exchange,
			MarketType:    marketType,
			Symbol:        symbol,
			Pair:          decode.Pair(Exchange, marketType, symbol),
			FundingRate:   rate,
			FundingTime:   fundingTime,
			EstimatedRate: estimated,
			Timestamp:     ts,
		})
	}
	return rates, nil
}
