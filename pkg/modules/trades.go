package modules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tinyland-inc/gamelink/pkg/aggregate"
	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/render"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

const TradeFeedName = "trade-feed"

var _ worker.Runner = (*TradeFeed)(nil)

const tradeColor = 0xf1c40f

// TradeFeed batches bursts of trades between the same two parties into one
// message per flush interval.
type TradeFeed struct {
	feed
	agg *aggregate.Aggregator[gameserver.Trade]
}

func NewTradeFeed(sys *bridge.SystemContext) *TradeFeed {
	t := &TradeFeed{feed: newFeed(FeedTrades, sys)}
	t.agg = aggregate.New(TradeFeedName, tradeKey, t.flush)
	return t
}

func tradeKey(tr gameserver.Trade) string {
	return aggregate.PairKey(tr.Buyer, tr.Seller)
}

func (t *TradeFeed) Name() string            { return TradeFeedName }
func (t *TradeFeed) Triggers() bus.EventKind { return bus.TradeCompleted }
func (t *TradeFeed) ShouldRun() bool         { return t.sys.Config().Features.TradeFeed }

// Started runs the flush loop while the worker is Running. Trades buffered
// across a disconnect are posted on the first flush after reconnecting.
func (t *TradeFeed) Started(ctx context.Context) {
	t.agg.Start(ctx, t.sys.Config().Timers.AggregationFlush.Std())
}

func (t *TradeFeed) Stopped() {
	t.agg.Stop()
}

func (t *TradeFeed) Update(_ context.Context, e bus.Event) error {
	tr, ok := bus.Find[gameserver.Trade](e)
	if !ok {
		return nil
	}
	t.agg.OnEvent(tr)
	return nil
}

// Teardown posts whatever is still buffered.
func (t *TradeFeed) Teardown(ctx context.Context) {
	if n := t.agg.FlushAll(ctx); n > 0 {
		logger.DebugCF("modules", "Flushed pending trades on teardown", map[string]any{"buckets": n})
	}
}

func (t *TradeFeed) Describe() string {
	return fmt.Sprintf("%d pending trade groups", t.agg.Pending())
}

func (t *TradeFeed) flush(ctx context.Context, b aggregate.Bucket[gameserver.Trade]) {
	if err := t.post(ctx, renderTrades(b)); err != nil {
		logger.WarnCF("modules", "Failed to post trades", map[string]any{
			"key":   strings.ReplaceAll(b.Key, "\x00", "/"),
			"error": err.Error(),
		})
	}
}

// renderTrades groups a bucket by store and direction of sale.
func renderTrades(b aggregate.Bucket[gameserver.Trade]) render.Content {
	a, z := aggregate.SplitPairKey(b.Key)
	c := render.Content{
		Title: fmt.Sprintf("Trades between %s and %s", a, z),
		Color: tradeColor,
	}

	type group struct {
		title string
		lines []string
	}
	var order []string
	groups := make(map[string]*group)
	for _, tr := range b.Events {
		title := fmt.Sprintf("%s bought from %s", tr.Buyer, tr.Seller)
		if tr.Store != "" {
			title += " at " + tr.Store
		}
		g, ok := groups[title]
		if !ok {
			g = &group{title: title}
			groups[title] = g
			order = append(order, title)
		}
		g.lines = append(g.lines, tradeLine(tr))
	}
	sort.Strings(order)
	for _, title := range order {
		g := groups[title]
		c.AddField(g.title, strings.Join(g.lines, "\n"), false)
	}

	var total float64
	currency := ""
	mixed := false
	for _, tr := range b.Events {
		total += tr.Price * float64(tr.Quantity)
		if currency == "" {
			currency = tr.Currency
		} else if tr.Currency != currency {
			mixed = true
		}
	}
	if !mixed && currency != "" {
		c.Footer = fmt.Sprintf("%d trades, %.2f %s total", len(b.Events), total, currency)
	} else {
		c.Footer = fmt.Sprintf("%d trades", len(b.Events))
	}
	return c
}

func tradeLine(tr gameserver.Trade) string {
	line := fmt.Sprintf("%d x %s", tr.Quantity, tr.Item)
	if tr.Price > 0 {
		line += fmt.Sprintf(" @ %.2f", tr.Price)
		if tr.Currency != "" {
			line += " " + tr.Currency
		}
	}
	return line
}
