package base

// Registration is a common information about the storage driver.
type Registration struct {
	Name     string // unique name
	Title    string // human-readable name
	Local    bool   // stores data on local disk or keeps it in-memory
	Volatile bool   // not persistent
}
