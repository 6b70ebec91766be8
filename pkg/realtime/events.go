// Package realtime simulates a live stream of store activity: orders,
// behavioural insights, revenue milestones and operational warnings.
package realtime

// Kind names an event stream listeners can subscribe to.
type Kind string

const (
	KindNewOrder   Kind = "new-order"
	KindInsight    Kind = "ai-insight"
	KindMilestone  Kind = "milestone"
	KindWarning    Kind = "warning"
	KindCapReached Kind = "cap-reached"
)

// Kinds lists every stream, regular kinds first.
var Kinds = []Kind{KindNewOrder, KindInsight, KindMilestone, KindWarning, KindCapReached}

// Event is a payload delivered to listeners. Events are values; listeners
// receive their own copy.
type Event interface {
	Kind() Kind
}

type OrderStatus string

const (
	StatusCompleted  OrderStatus = "completed"
	StatusProcessing OrderStatus = "processing"
	StatusPending    OrderStatus = "pending"
	StatusCancelled  OrderStatus = "cancelled"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Order is a single synthetic purchase.
type Order struct {
	ID       string      `json:"id"`
	Customer string      `json:"customer"`
	Product  string      `json:"product"`
	Amount   float64     `json:"amount"`
	Status   OrderStatus `json:"status"`
	Date     string      `json:"date"`
}

// NewOrderEvent carries the order plus the running totals after it was booked.
type NewOrderEvent struct {
	OrderID        string  `json:"orderId"`
	Amount         string  `json:"amount"`
	Revenue        float64 `json:"revenue"`
	Orders         int     `json:"orders"`
	ConversionRate float64 `json:"conversionRate"`
	AvgOrderValue  float64 `json:"avgOrderValue"`
	Order          Order   `json:"order"`
}

func (NewOrderEvent) Kind() Kind { return KindNewOrder }

type InsightEvent struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (InsightEvent) Kind() Kind { return KindInsight }

type MilestoneEvent struct {
	Milestone string  `json:"milestone"`
	Value     float64 `json:"value"`
}

func (MilestoneEvent) Kind() Kind { return KindMilestone }

type WarningEvent struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (WarningEvent) Kind() Kind { return KindWarning }

// CapReachedEvent is sent once when the simulator stops itself at its cap.
// It is not counted as an event.
type CapReachedEvent struct {
	TotalEvents int `json:"totalEvents"`
}

func (CapReachedEvent) Kind() Kind { return KindCapReached }

// Metrics are the running store totals.
type Metrics struct {
	Revenue        float64 `json:"revenue"`
	Orders         int     `json:"orders"`
	ConversionRate float64 `json:"conversionRate"`
	AvgOrderValue  float64 `json:"avgOrderValue"`
}

// SeedMetrics are the totals a fresh simulator starts from.
var SeedMetrics = Metrics{
	Revenue:        284750,
	Orders:         1847,
	ConversionRate: 3.24,
	AvgOrderValue:  154.17,
}

// SeedOrderCounter is the last order number booked before the simulation.
const SeedOrderCounter = 7891

var customers = []string{
	"Sarah Mitchell", "James Wilson", "Emily Chen", "Michael Brown",
	"Lisa Anderson", "David Kim", "Anna Martinez", "Robert Taylor",
	"Jennifer Lee", "Christopher White", "Jessica Moore", "Daniel Garcia",
}

var products = []string{
	"Premium Wireless Headphones",
	"Smart Fitness Watch Pro",
	"Ergonomic Office Chair",
	"Portable Power Bank 20K",
	"Noise-Canceling Earbuds",
	"Standing Desk Converter",
	"Mechanical Keyboard RGB",
	"Webcam 4K Ultra HD",
}

// Cancelled orders are never generated.
var orderStatuses = []OrderStatus{StatusCompleted, StatusProcessing, StatusPending}

var insights = []string{
	"Customer engagement is 23% higher during weekend hours",
	"Product bundle recommendations increased cart value by 15%",
	"Mobile users show 35% higher conversion on Thursdays",
	"Email campaigns sent at 10 AM have 40% better open rates",
	"Customers browsing 3+ products are 60% more likely to purchase",
	"Free shipping threshold at $75 optimizes profit margins",
}

var warnings = []string{
	"API response time increased by 15% in the last hour",
	"Inventory running low on 3 popular products",
	"Unusual traffic spike detected from new region",
	"Payment gateway latency above normal threshold",
}

type milestone struct {
	threshold float64
	label     string
}

var milestones = []milestone{
	{threshold: 125000, label: "$125K Revenue"},
	{threshold: 130000, label: "$130K Revenue"},
	{threshold: 135000, label: "$135K Revenue"},
	{threshold: 140000, label: "$140K Revenue"},
}
