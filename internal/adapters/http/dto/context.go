package dto

import "github.com/jsamuelsen/faultctx/internal/app/reqctx"

// ContextResponse is the JSON view of a reqctx.RequestContext.
type ContextResponse struct {
	Fields    map[string]string `json:"fields"`
	Method    string            `json:"method,omitempty"`
	URL       string            `json:"url,omitempty"`
	Route     string            `json:"route,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// NewContextResponse converts rc. A nil rc yields empty fields.
func NewContextResponse(rc *reqctx.RequestContext) ContextResponse {
	meta := rc.Meta()

	return ContextResponse{
		Fields:    rc.Fields(),
		Method:    meta.Method,
		URL:       meta.URL,
		Route:     meta.Route,
		RequestID: meta.RequestID,
	}
}

// FanOutResponse reports what each branch of a fan-out observed.
type FanOutResponse struct {
	Branches []BranchResult `json:"branches"`
}

// BranchResult is the outcome of one fan-out branch.
type BranchResult struct {
	Index     int    `json:"index"`
	RequestID string `json:"requestId"`
	UserAgent string `json:"userAgent"`
}
