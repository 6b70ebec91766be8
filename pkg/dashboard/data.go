package dashboard

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/zen-systems/pulseboard/pkg/realtime"
)

// Baseline figures for the reporting period. Live metrics move away from
// these; the previous-period values stay fixed.
var (
	previousRevenue = 251200.0
	previousOrders  = 1654
)

type monthRevenue struct {
	month   string
	revenue float64
}

var revenueTrend = []monthRevenue{
	{"2024-07", 185000},
	{"2024-08", 198500},
	{"2024-09", 215200},
	{"2024-10", 232800},
	{"2024-11", 251200},
	{"2024-12", 284750},
}

type productSale struct {
	name    string
	units   int
	revenue float64
	growth  float64
}

var topProducts = []productSale{
	{"Premium Wireless Headphones", 847, 84700, 23.5},
	{"Smart Fitness Watch Pro", 623, 62300, 18.2},
	{"Ergonomic Office Chair", 412, 45320, 12.8},
	{"Portable Power Bank 20K", 589, 29450, 31.4},
	{"Noise-Canceling Earbuds", 756, 26460, 15.7},
}

type share struct {
	name    string
	revenue float64
	percent float64
}

var regions = []share{
	{"North America", 128137, 45},
	{"Europe", 71187, 25},
	{"Asia Pacific", 56950, 20},
	{"Rest of World", 28476, 10},
}

var categories = []share{
	{"Electronics", 181760, 63.8},
	{"Furniture", 68720, 24.1},
	{"Wearables", 34270, 12.1},
}

// seedOrders are the orders booked before the simulation, newest first.
// Dates are offsets in days from today.
var seedOrders = []struct {
	order   realtime.Order
	daysAgo int
}{
	{realtime.Order{ID: "ORD-7891", Customer: "Sarah Mitchell", Product: "Premium Wireless Headphones", Amount: 199.99, Status: realtime.StatusCompleted}, 0},
	{realtime.Order{ID: "ORD-7890", Customer: "James Wilson", Product: "Smart Fitness Watch Pro", Amount: 299.99, Status: realtime.StatusProcessing}, 0},
	{realtime.Order{ID: "ORD-7889", Customer: "Emily Chen", Product: "Ergonomic Office Chair", Amount: 449.99, Status: realtime.StatusCompleted}, 1},
	{realtime.Order{ID: "ORD-7888", Customer: "Michael Brown", Product: "Portable Power Bank 20K", Amount: 49.99, Status: realtime.StatusPending}, 1},
	{realtime.Order{ID: "ORD-7887", Customer: "Lisa Anderson", Product: "Noise-Canceling Earbuds", Amount: 149.99, Status: realtime.StatusCompleted}, 1},
	{realtime.Order{ID: "ORD-7886", Customer: "David Kim", Product: "Mechanical Keyboard RGB", Amount: 89.99, Status: realtime.StatusCompleted}, 2},
	{realtime.Order{ID: "ORD-7885", Customer: "Anna Martinez", Product: "Webcam 4K Ultra HD", Amount: 129.99, Status: realtime.StatusProcessing}, 2},
	{realtime.Order{ID: "ORD-7884", Customer: "Robert Taylor", Product: "Standing Desk Converter", Amount: 349.99, Status: realtime.StatusCancelled}, 2},
}

// currency formats whole dollars with thousands separators, e.g. $284,750.
func currency(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(v)))
}

func number(v int) string {
	return humanize.Comma(int64(v))
}

func change(current, previous float64) string {
	pct := (current - previous) / previous * 100
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, pct)
}
