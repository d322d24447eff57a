package query

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type Result struct {
	ID    int64    `json:"id"`
	Score *float64 `json:"score,omitempty"`
}

type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
	Label string `json:"label,omitempty"`
}

// Response is the result of one query execution.
type Response struct {
	Status      Status                  `json:"status"`
	Message     string                  `json:"message,omitempty"`
	Results     map[string][]Result     `json:"results,omitempty"`
	Totals      map[string]int          `json:"totals,omitempty"`
	FacetCounts map[string][]FacetCount `json:"facet_counts,omitempty"`
}

func NewResponse() Response {
	return Response{
		Status:      StatusSuccess,
		Results:     make(map[string][]Result),
		Totals:      make(map[string]int),
		FacetCounts: make(map[string][]FacetCount),
	}
}

func ErrorResponse(msg string) Response {
	return Response{Status: StatusError, Message: msg}
}

func (r Response) IsSuccess() bool { return r.Status == StatusSuccess }

// Total sums the totals of every resource type.
func (r Response) Total() int {
	var total int
	for _, n := range r.Totals {
		total += n
	}
	return total
}
