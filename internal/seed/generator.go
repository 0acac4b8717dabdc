package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	firstNames = []string{"Ava", "Ben", "Chloe", "Dev", "Elena", "Farid", "Gina", "Hugo", "Ines", "Jonas", "Kira", "Luis"}
	lastNames  = []string{"Adams", "Berg", "Costa", "Diaz", "Evans", "Fischer", "Gupta", "Hansen", "Ito", "Jensen", "Khan", "Lopez"}
)

// Generator produces extra customers and orders for larger demo stores.
// Output is deterministic for a given seed.
type Generator struct {
	rnd          *rand.Rand
	nextCustomer int64
	nextOrder    int64
	start        time.Time
}

// NewGenerator continues numbering after the fixed sample rows.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:          rand.New(rand.NewSource(seed)),
		nextCustomer: int64(len(Customers)),
		nextOrder:    int64(len(Orders)),
		start:        time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// NextCustomer returns a customer and between zero and three orders placed
// on or after the signup date.
func (g *Generator) NextCustomer() (Customer, []Order) {
	g.nextCustomer++
	signup := g.start.AddDate(0, 0, g.rnd.Intn(365))
	customer := Customer{
		ID:         g.nextCustomer,
		Name:       fmt.Sprintf("%s %s", pickOne(g.rnd, firstNames), pickOne(g.rnd, lastNames)),
		SignupDate: signup.Format(time.DateOnly),
	}

	count := g.rnd.Intn(4)
	orders := make([]Order, 0, count)
	for i := 0; i < count; i++ {
		g.nextOrder++
		orders = append(orders, Order{
			ID:         g.nextOrder,
			CustomerID: customer.ID,
			Amount:     g.pickAmount(),
			OrderDate:  signup.AddDate(0, 0, 1+g.rnd.Intn(90)).Format(time.DateOnly),
		})
	}
	return customer, orders
}

func (g *Generator) pickAmount() float64 {
	p := g.rnd.Intn(100)
	switch {
	case p < 60:
		return round2(20 + g.rnd.Float64()*180)
	case p < 90:
		return round2(200 + g.rnd.Float64()*800)
	default:
		return round2(1000 + g.rnd.Float64()*1000)
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
