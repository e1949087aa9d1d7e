package oracli

// Record result from unwrap a fetched row, keyed by column name
type Record map[string]any

// Container Data returned by Select
type Container struct {
	Data []Record
}

// Result unique returning type of the convenience API
type Result struct {
	*Container
	Error           error
	RecordsAffected int64
	HasData         bool
}

// addToRows appends a record to Container.Data
func (c *Container) addToRows(r Record) {
	c.Data = append(c.Data, r)
}

// newContainer creates a new Container
func newContainer() *Container {
	return &Container{
		Data: make([]Record, 0, 1),
	}
}
