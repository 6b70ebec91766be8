package dashboard

import (
	"fmt"
	"strings"

	"github.com/zen-systems/pulseboard/pkg/realtime"
)

const rule = "================================================================================"

// SummaryPrompt asks for an executive summary of the current data.
const SummaryPrompt = `Please provide a brief executive summary of the current dashboard data. Include:
1. Overall performance assessment
2. Key highlights (what's doing well)
3. Areas needing attention
4. One recommended action

Keep it concise and actionable.`

// SystemPrompt frames the assistant around the given dashboard state.
func SystemPrompt(s Snapshot) string {
	return `You are an AI assistant integrated into a sales dashboard. You help users understand their business data and provide actionable insights.

You have access to the following LIVE dashboard data (updated in real-time):
` + Summary(s) + `

Formatting Guidelines:
- Use ## for section headers (e.g., ## Key Insights)
- Use bullet points with - for lists
- Use **bold** for important numbers and metrics
- Keep responses concise and scannable
- Structure your response with clear sections when providing multiple points

Content Guidelines:
1. Be specific - reference actual numbers from the data
2. Highlight trends and patterns (the data updates in real-time)
3. Provide actionable recommendations
4. Format currency with $ and percentages with %
5. Compare current vs previous periods when relevant
6. The "MOST RECENT ORDERS" list is sorted newest first, so the first order is the most recent
7. You only have access to the ` + fmt.Sprint(RecentOrderLimit) + ` most recent orders. If asked about more, say so honestly

Keep responses under 200 words unless more detail is requested.`
}

// Summary renders the dashboard state as plain text.
func Summary(s Snapshot) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(rule)
	line("SALES DASHBOARD DATA SUMMARY")
	line(rule)
	line("")
	line("KEY METRICS:")
	line("- Total Revenue: %s (%s vs last period)", currency(s.Metrics.Revenue), change(s.Metrics.Revenue, previousRevenue))
	line("- Total Orders: %s (%s vs last period)", number(s.Metrics.Orders), change(float64(s.Metrics.Orders), float64(previousOrders)))
	line("- Conversion Rate: %.2f%%", s.Metrics.ConversionRate)
	line("- Average Order Value: %s", currency(s.Metrics.AvgOrderValue))
	line("")
	line("REVENUE TREND (Last 6 Months):")
	for _, m := range revenueTrend {
		line("- %s: %s", m.month, currency(m.revenue))
	}
	line("")
	line("TOP SELLING PRODUCTS (By Total Revenue - NOT individual orders):")
	for i, p := range topProducts {
		line("%d. %s: Total Revenue %s, Total Units Sold: %d, Growth: +%.1f%%", i+1, p.name, currency(p.revenue), p.units, p.growth)
	}
	line("")
	line("REVENUE BY REGION:")
	for _, r := range regions {
		line("- %s: %s (%g%%)", r.name, currency(r.revenue), r.percent)
	}
	line("")
	line("CATEGORY BREAKDOWN:")
	for _, c := range categories {
		line("- %s: %s (%g%% of total)", c.name, currency(c.revenue), c.percent)
	}
	line("")
	line("RECENT ACTIVITY:")
	line("- Completed orders: %d", countStatus(s.RecentOrders, realtime.StatusCompleted))
	line("- Processing orders: %d", countStatus(s.RecentOrders, realtime.StatusProcessing))
	line("- Pending orders: %d", countStatus(s.RecentOrders, realtime.StatusPending))
	line("")
	line("MOST RECENT ORDERS (newest first):")
	for i, o := range s.RecentOrders {
		line("%d. Order ID: %s, Date: %s, Customer: %s, Product: %s, Amount: $%.2f, Status: %s",
			i+1, o.ID, o.Date, o.Customer, o.Product, o.Amount, o.Status)
	}
	line("")
	line(rule)
	line("REAL-TIME EVENTS")
	line(rule)
	line("- Total Events Generated: %d", s.TotalEvents)
	line("  - New Order Events: %d", s.EventCounts[realtime.KindNewOrder])
	line("  - AI Insight Events: %d", s.EventCounts[realtime.KindInsight])
	line("  - Milestone Events: %d", s.EventCounts[realtime.KindMilestone])
	line("  - Warning Events: %d", s.EventCounts[realtime.KindWarning])
	if s.EventCap > 0 && s.TotalEvents >= s.EventCap {
		line("- System Status: CAP REACHED (%d/%d - no new events will be generated)", s.TotalEvents, s.EventCap)
	} else {
		line("- System Status: Active (%d/%d events)", s.TotalEvents, s.EventCap)
	}
	line("")
	line("RECENT EVENT TIMELINE (newest first):")
	if len(s.Timeline) == 0 {
		line("No events yet - waiting for first event...")
	}
	for i := len(s.Timeline) - 1; i >= 0; i-- {
		e := s.Timeline[i]
		line("- [%s] %s: %s", e.At.Format("15:04:05"), strings.ToUpper(string(e.Kind)), e.Summary)
	}
	return strings.TrimSpace(b.String())
}

func countStatus(orders []realtime.Order, status realtime.OrderStatus) int {
	n := 0
	for _, o := range orders {
		if o.Status == status {
			n++
		}
	}
	return n
}
