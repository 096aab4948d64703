package crossdevice

import (
	"fmt"
	"net/url"
)

// Query and fragment parameter names exchanged with the identity provider
// and the QR scan flow.
const (
	ParamScanSessionID = "scanSessionId"
	ParamAuthToken     = "auth_token"
	ParamAccessToken   = "access_token"
	ParamRefreshToken  = "refresh_token"
	ParamRedirectTo    = "redirect_to"
)

// Location is the decomposed browser location the orchestrator inspects.
// The fragment is parsed with query-string syntax, which is how the identity
// provider encodes tokens into it.
type Location struct {
	Path     string
	Query    url.Values
	Fragment url.Values
}

// ParseLocation splits a raw URL into the parts the orchestrator matches on.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location: %w", err)
	}

	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		// A fragment that is not query-shaped is simply not ours.
		fragment = url.Values{}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return Location{
		Path:     path,
		Query:    u.Query(),
		Fragment: fragment,
	}, nil
}

// hasScanParams reports whether the query carries a complete Leg-1 trigger.
func (l Location) hasScanParams() bool {
	return l.Query.Get(ParamScanSessionID) != "" && l.Query.Get(ParamAuthToken) != ""
}

// hasProviderTokens reports whether the fragment carries a complete Leg-2
// trigger.
func (l Location) hasProviderTokens() bool {
	return l.Fragment.Get(ParamAccessToken) != "" && l.Fragment.Get(ParamRefreshToken) != ""
}
