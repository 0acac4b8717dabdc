package seed

type Customer struct {
	ID         int64
	Name       string
	SignupDate string
}

type Order struct {
	ID         int64
	CustomerID int64
	Amount     float64
	OrderDate  string
}

// Customers and Orders are the rows every freshly seeded store starts with.
var Customers = []Customer{
	{1, "John Smith", "2025-01-15"},
	{2, "Jane Doe", "2025-02-20"},
	{3, "Bob Johnson", "2025-03-10"},
	{4, "Alice Brown", "2025-04-05"},
	{5, "Charlie Wilson", "2025-05-12"},
	{6, "Diana Davis", "2025-06-18"},
	{7, "Eve Miller", "2025-07-03"},
	{8, "Frank Garcia", "2025-08-25"},
	{9, "Grace Lee", "2025-09-14"},
	{10, "Henry Taylor", "2025-10-30"},
}

var Orders = []Order{
	{1, 1, 150.00, "2025-01-20"},
	{2, 1, 75.50, "2025-02-15"},
	{3, 2, 1200.00, "2025-02-25"},
	{4, 3, 89.99, "2025-03-15"},
	{5, 4, 450.00, "2025-04-10"},
	{6, 5, 200.00, "2025-05-20"},
	{7, 6, 1800.00, "2025-06-25"},
	{8, 7, 95.00, "2025-07-08"},
	{9, 8, 320.00, "2025-08-30"},
	{10, 9, 750.00, "2025-09-20"},
	{11, 10, 125.00, "2025-10-05"},
	{12, 1, 300.00, "2025-11-10"},
	{13, 2, 85.00, "2025-11-15"},
	{14, 3, 1200.00, "2025-12-01"},
	{15, 4, 65.00, "2025-12-10"},
}
