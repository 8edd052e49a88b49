package model

// InitResult reports what a seeding request did.
type InitResult struct {
	Message  string
	Count    int
	Seeded   bool
	Fallback bool
}
