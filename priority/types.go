package priority

// StatusUnreachable is reported for an endpoint whose status call failed.
const StatusUnreachable = "unreachable"

// EndpointStatus is the reported state of one endpoint.
type EndpointStatus struct {
	URL      string  `json:"url"`
	Hostname *string `json:"hostname"`
	Status   string  `json:"status"`
	Method   string  `json:"method"`
}

// CallResult records one priority call.
type CallResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode,omitempty"`
	Err        error  `json:"-"`
	Error      string `json:"error,omitempty"`
}

func (r CallResult) OK() bool {
	return r.Err == nil
}

// Outcome is the result of a primary transition. Demotions are the secondary calls implied
// by only_one mode; their failures never fail the transition.
type Outcome struct {
	Primary   CallResult   `json:"primary"`
	Demotions []CallResult `json:"demotions,omitempty"`
}

// FailedDemotions returns the demotion calls that did not succeed.
func (o Outcome) FailedDemotions() []CallResult {
	var failed []CallResult
	for _, d := range o.Demotions {
		if !d.OK() {
			failed = append(failed, d)
		}
	}
	return failed
}
