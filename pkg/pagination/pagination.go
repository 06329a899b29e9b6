package pagination

// DefaultMaxPageSize caps a page when the service was built without an
// explicit quota.
const DefaultMaxPageSize = 100

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Skip  int
	Limit int
}

// Normalize clamps the raw parameters against the configured quota.
// A zero or negative limit means "as many as allowed" and defers to
// maxPageSize entirely; skip never goes below zero.
func Normalize(params Params, maxPageSize int) Params {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	out := params
	if out.Skip < 0 {
		out.Skip = 0
	}
	if out.Limit <= 0 || out.Limit > maxPageSize {
		out.Limit = maxPageSize
	}
	return out
}
