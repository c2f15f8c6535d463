package template

// PageData represents the data passed to the landing page
type PageData struct {
	Title        string
	ExampleName  string
	RequiresKey  bool
	MinKeyLength int
	MaxKeyLength int
}
