package plan

// Shape selects the exec wrapper variant from which halves of the command
// carry fields.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeIn
	ShapeOut
	ShapeInOut
)

// ShapeOf returns the shape for a command with or without request and
// response fields.
func ShapeOf(hasRequest, hasResponse bool) Shape {
	switch {
	case hasRequest && hasResponse:
		return ShapeInOut
	case hasRequest:
		return ShapeIn
	case hasResponse:
		return ShapeOut
	default:
		return ShapeNone
	}
}

func (s Shape) HasRequest() bool  { return s == ShapeIn || s == ShapeInOut }
func (s Shape) HasResponse() bool { return s == ShapeOut || s == ShapeInOut }

func (s Shape) String() string {
	switch s {
	case ShapeIn:
		return "in"
	case ShapeOut:
		return "out"
	case ShapeInOut:
		return "in-out"
	default:
		return "none"
	}
}
